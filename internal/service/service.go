// Package service contains the business logic layer of the application.
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes documents
//
// Every service takes a repository.Repository[T] (an interface), never a
// concrete backend, so tests inject in-memory fakes and main picks Mongo,
// SQLite or Postgres without this package knowing.
//
// Services validate their inputs (model.Validate) and return apperror values;
// the handler layer translates those into HTTP status codes.
package service

import (
	"log/slog"
	"strings"

	"github.com/sakif/postboard/internal/apperror"
)

// requireID trims id and rejects an empty one.
func requireID(id, what string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", apperror.ValidationFailed("id", what+" ID is required")
	}
	return id, nil
}

func errAttr(err error) slog.Attr {
	return slog.String("error", err.Error())
}
