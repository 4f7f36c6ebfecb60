package handlers

import (
	"github.com/edustack/material-importer/internal/service/material"
	"github.com/edustack/material-importer/pkg/logger"
)

type Handlers struct {
	Material *MaterialHandler
}

func NewHandlers(
	importer material.MaterialImporter,
	logger logger.Logger,
) *Handlers {
	return &Handlers{
		Material: NewMaterialHandler(importer, logger),
	}
}
