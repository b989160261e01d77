package handlers

import (
	"context"

	"go.uber.org/zap"

	"github.com/padraicbc/lottosync/db"
	"github.com/padraicbc/lottosync/models"
	"github.com/padraicbc/lottosync/syncstate"
)

// Store is the read side of the database used by the status routes.
type Store interface {
	Stats(ctx context.Context) (db.Stats, error)
	GetDraw(ctx context.Context, drawNo int) (*models.Draw, error)
	GetLastDraw(ctx context.Context) (*models.Draw, error)
	GetRetailer(ctx context.Context, id int64) (*models.Retailer, error)
	GetWinRecordsFor(ctx context.Context, drawNo int) ([]models.WinRecord, error)
	GetOperator(ctx context.Context, username string) (*models.Operator, error)
}

// Handler holds shared dependencies used by all route handlers.
type Handler struct {
	store  Store
	cursor *syncstate.File
	logger *zap.Logger
	JWTKey []byte
}

// New creates a Handler over the store, the sync cursor file and the JWT signing key.
func New(store Store, cursor *syncstate.File, jwtKey []byte, logger *zap.Logger) *Handler {
	return &Handler{store: store, cursor: cursor, JWTKey: jwtKey, logger: logger}
}
