package handler

import (
	"bizhub/internal/app/books"
	"bizhub/internal/app/credits"
	"bizhub/internal/app/db"
	"bizhub/internal/app/genai"
	"bizhub/internal/app/rooms"
	"bizhub/internal/app/rtstore"
	"bizhub/internal/app/storage"
	"bizhub/internal/configs"
)

type AppDeps struct {
	Config         *configs.AppConfig
	Store          *rtstore.Store
	Ledger         *credits.Ledger
	Rooms          *rooms.Service
	Hub            *rooms.Hub
	Books          *books.Service
	Content        genai.ContentService
	Accounts       *db.AccountRepo
	StorageService storage.StorageService
}
