package chat

import (
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/pkg/utils"
)

// reconcileCitations verifies the generator's citation ids against the chunks
// that were actually retrieved. Ids that match no candidate are dropped
// silently; a refusal never carries citations. The quote is a short excerpt of
// the cited chunk, never generator output.
func reconcileCitations(answer *models.GroundedAnswer, candidates []models.RetrievedChunk, quoteLength int) []models.Citation {
	citations := []models.Citation{}
	if answer.IsRefusal {
		return citations
	}
	byID := make(map[string]*models.Chunk, len(candidates))
	for i := range candidates {
		byID[candidates[i].Chunk.RefID()] = &candidates[i].Chunk
	}
	for _, id := range answer.CitationIDs {
		chunk, ok := byID[id]
		if !ok {
			continue
		}
		citations = append(citations, models.Citation{
			SourceID: id,
			Quote:    utils.Truncate(chunk.Text, quoteLength),
			Page:     chunk.Page,
			FileName: chunk.Filename,
		})
	}
	return citations
}
