package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/homeworkai/backend/internal/domain"
	"github.com/homeworkai/backend/internal/solver"
)

// Render serializes a completed analysis to a PDF and stores it next to
// the source upload under {uploadId}/{analysisId}.pdf. The stored output
// is re-validated first: a record that never completed, or holds stale
// partial data, must not render.
func (uc *Usecase) Render(ctx context.Context, userID, uploadID, analysisID string) (domain.RenderResponse, error) {
	u, err := uc.ownedUpload(ctx, userID, uploadID)
	if err != nil {
		return domain.RenderResponse{}, err
	}

	a, err := uc.analyses.Analysis(ctx, analysisID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.RenderResponse{}, domain.ErrNotFound
		}
		return domain.RenderResponse{}, fmt.Errorf("load analysis: %w", err)
	}
	if a.UploadID != uploadID {
		return domain.RenderResponse{}, domain.ErrNotFound
	}

	sol, err := solver.ValidateSolution(a.Output)
	if err != nil {
		return domain.RenderResponse{}, fmt.Errorf("%w: stored output does not conform", domain.ErrValidation)
	}

	data, pages, err := uc.renderer.Render(sol)
	if err != nil {
		return domain.RenderResponse{}, fmt.Errorf("render solution: %w", err)
	}

	key := uploadID + "/" + analysisID + ".pdf"
	if err := uc.objects.Put(ctx, key, data, "application/pdf"); err != nil {
		return domain.RenderResponse{}, fmt.Errorf("store rendered pdf: %w", err)
	}

	if err := uc.analyses.SetSolutionLocation(ctx, analysisID, u.Bucket, key); err != nil {
		return domain.RenderResponse{}, fmt.Errorf("record solution location: %w", err)
	}

	return domain.RenderResponse{Key: key, Pages: pages}, nil
}
