// Package service contains the business rules of the blog.
//
//	Handler (HTTP)  → parses requests, writes responses
//	Service (rules) → identity, ownership, validation, pagination
//	Repository      → reads/writes the database
//
// Services take the caller as an explicit *model.Identity argument (nil
// means anonymous) and return apperror values. They never see HTTP types,
// so the blogctl command reuses them unchanged.
//
// Error policy: domain errors from the repository (NotFound, Conflict) pass
// through untouched. Anything else is a storage failure: it is logged here,
// once, with its detail, and replaced by apperror.Internal so no SQL or file
// path reaches a client.
package service

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/sakif/blogspace/internal/apperror"
)

// parseID turns a path segment into a positive id or a validation error.
func parseID(resource, raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.InvalidID(resource, raw)
	}
	return id, nil
}

// fail passes domain errors through and converts everything else to
// apperror.Internal after logging it.
func fail(ctx context.Context, logger *slog.Logger, op string, err error, attrs ...any) error {
	if apperror.IsDomain(err) {
		return err
	}
	args := append([]any{slog.String("op", op), slog.String("error", err.Error())}, attrs...)
	logger.ErrorContext(ctx, "storage operation failed", args...)
	return apperror.Internal(op, err)
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
