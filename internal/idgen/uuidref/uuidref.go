// Package uuidref builds references that stay unique across restarts and replicas.
package uuidref

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const suffixLen = 8

type Generator struct{}

func New() *Generator {
	return &Generator{}
}

// NextReference returns PREFIX-YYYYMMDD-XXXXXXXX with a random upper-case hex suffix.
func (g *Generator) NextReference(_ context.Context, prefix string, date time.Time) (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("new uuid: %w", err)
	}

	suffix := strings.ToUpper(strings.ReplaceAll(id.String(), "-", ""))[:suffixLen]

	return fmt.Sprintf("%s-%s-%s", prefix, date.Format("20060102"), suffix), nil
}
