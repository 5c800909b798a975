package services

import (
	"fmt"

	"github.com/julianmcancelo/grana3d2026-sub000/internal/domain"
)

func persistence(err error) error {
	return fmt.Errorf("%w: %w", domain.ErrPersistence, err)
}
