package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"thesiscert/internal/model"
)

// SeedInstitutions upserts every institution of a JSON array read from r and
// returns how many were written.
func SeedInstitutions(ctx context.Context, repo InstitutionRepository, r io.Reader) (int, error) {
	var insts []model.Institution
	if err := json.NewDecoder(r).Decode(&insts); err != nil {
		return 0, fmt.Errorf("decode institutions: %w", err)
	}
	for i := range insts {
		if insts[i].ID == "" {
			return i, fmt.Errorf("institution %d has no id", i)
		}
		if _, err := repo.Upsert(ctx, &insts[i]); err != nil {
			return i, fmt.Errorf("upsert institution %s: %w", insts[i].ID, err)
		}
	}
	return len(insts), nil
}
