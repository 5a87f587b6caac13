package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/temirov/article-drafter/internal/pipeline"
	"github.com/temirov/article-drafter/internal/schema"
)

// Backend serves repeated requests from the Store and forwards misses to Next.
// Invoke never writes: a response is stored only when the executor reports it
// accepted through Accept, so rejected responses are re-requested on the next
// attempt. Store failures are logged and the request falls through to Next.
type Backend struct {
	Next   pipeline.Backend
	Store  *Store
	Logger *zap.Logger
}

type keyField struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Role        string `json:"role"`
	Description string `json:"description"`
}

type keyDocument struct {
	Schema     string            `json:"schema"`
	Purpose    string            `json:"purpose"`
	Fields     []keyField        `json:"fields"`
	Inputs     schema.Values     `json:"inputs"`
	Strategy   string            `json:"strategy"`
	Settings   pipeline.Settings `json:"settings"`
	Refinement string            `json:"refinement"`
}

// Key derives the cache key of a request: the SHA-256 of its canonical JSON.
func Key(request pipeline.Request) (string, error) {
	document := keyDocument{
		Schema:     request.Schema.Name(),
		Purpose:    request.Schema.Purpose(),
		Inputs:     request.Inputs,
		Strategy:   request.Strategy,
		Settings:   request.Settings,
		Refinement: request.Refinement,
	}
	for _, field := range request.Schema.Fields() {
		document.Fields = append(document.Fields, keyField{
			Name:        field.Name,
			Type:        field.Type.String(),
			Role:        field.Role.String(),
			Description: field.Description,
		})
	}
	encoded, err := json.Marshal(document)
	if err != nil {
		return "", fmt.Errorf("encoding cache key: %w", err)
	}
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:]), nil
}

func (b *Backend) Invoke(ctx context.Context, request pipeline.Request) (pipeline.Response, error) {
	logger := b.logger().With(zap.String("schema", request.Schema.Name()))
	key, err := Key(request)
	if err != nil {
		logger.Warn("cache key unavailable", zap.Error(err))
		return b.Next.Invoke(ctx, request)
	}

	rawText, hit, err := b.Store.Get(ctx, key)
	switch {
	case err != nil:
		logger.Warn("cache read failed", zap.Error(err))
	case hit:
		logger.Debug("cache hit", zap.String("key", key))
		return pipeline.Response{RawText: rawText}, nil
	}

	return b.Next.Invoke(ctx, request)
}

// Accept stores an accepted response under the key of the unrefined request,
// so the next identical invocation is answered on its first attempt.
func (b *Backend) Accept(ctx context.Context, request pipeline.Request, response pipeline.Response) {
	logger := b.logger().With(zap.String("schema", request.Schema.Name()))
	request.Refinement = ""
	key, err := Key(request)
	if err != nil {
		logger.Warn("cache key unavailable", zap.Error(err))
		return
	}
	if putErr := b.Store.Put(ctx, key, request.Schema.Name(), response.RawText); putErr != nil {
		logger.Warn("cache write failed", zap.Error(putErr))
	}
}

func (b *Backend) logger() *zap.Logger {
	if b.Logger == nil {
		return zap.NewNop()
	}
	return b.Logger
}
