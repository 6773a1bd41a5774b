package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/joseph-ayodele/inspection-tracker/internal/common"
	"github.com/joseph-ayodele/inspection-tracker/internal/llm"
)

// extractChunked splits one document into an apartment list call, a metadata
// call and one call per batch of apartments, then merges the answers.
func (o *Orchestrator) extractChunked(ctx context.Context, document []byte, mimeType string) (*Result, error) {
	log := o.logger.With("run_id", common.RunIDFromContext(ctx))
	res := &Result{Chunked: true}
	merged := &llm.ReportPayload{Apartments: []llm.Apartment{}}
	providers := map[string]struct{}{}

	// 1) apartment list
	reply, err := o.TryProviders(ctx, o.prompts.ApartmentList(), document, mimeType)
	if err != nil {
		return nil, err
	}
	res.Attempts = append(res.Attempts, reply.Failures...)
	providers[reply.Provider] = struct{}{}

	numbers, err := llm.DecodeApartmentList(reply.Text)
	if err != nil {
		log.Warn("extract.chunked.list_unparsable", "provider", reply.Provider, "error", err)
		numbers = nil
	}
	numbers = uniqueNumbers(numbers)
	log.Info("extract.chunked.list", "apartments", numbers)

	// 2) metadata and site-level items
	reply, err = o.TryProviders(ctx, o.prompts.Metadata(), document, mimeType)
	if err != nil {
		return nil, err
	}
	res.Attempts = append(res.Attempts, reply.Failures...)
	providers[reply.Provider] = struct{}{}

	if meta, _, err := llm.DecodePayload(reply.Text, log); err != nil {
		log.Warn("extract.chunked.metadata_unparsable", "provider", reply.Provider, "error", err)
	} else {
		merged.ReportDate = meta.ReportDate
		merged.Inspector = meta.Inspector
		merged.ProjectName = meta.ProjectName
		merged.DevelopmentItems = meta.DevelopmentItems
		merged.ProgressTracking = meta.ProgressTracking
	}

	// 3) apartments in batches
	for _, batch := range batches(numbers, chunkSize) {
		reply, err := o.TryProviders(ctx, o.prompts.Chunk(batch), document, mimeType)
		if err != nil {
			if IsBlocking(err) || ctx.Err() != nil {
				return nil, err
			}
			log.Warn("extract.chunked.batch_failed", "batch", batch, "error", err)
			res.Attempts = append(res.Attempts, fmt.Sprintf("batch %s: %v", strings.Join(batch, ","), err))
			continue
		}
		res.Attempts = append(res.Attempts, reply.Failures...)
		providers[reply.Provider] = struct{}{}

		part, _, err := llm.DecodePayload(reply.Text, log)
		if err != nil {
			log.Warn("extract.chunked.batch_unparsable", "batch", batch, "provider", reply.Provider, "error", err)
			res.Attempts = append(res.Attempts, fmt.Sprintf("batch %s: %v", strings.Join(batch, ","), err))
			continue
		}
		kept := keepRequested(part.Apartments, batch)
		if dropped := len(part.Apartments) - len(kept); dropped > 0 {
			log.Warn("extract.chunked.unrequested_apartments", "batch", batch, "dropped", dropped)
		}
		merged.Apartments = append(merged.Apartments, kept...)
	}

	raw, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("encode merged payload: %w", err)
	}
	res.Payload = merged
	res.Raw = raw
	res.Provider = joinProviders(providers)

	log.Info("extract.chunked.ok",
		"apartments", len(merged.Apartments),
		"items", merged.ItemCount(),
		"providers", res.Provider,
	)
	return res, nil
}

func batches(items []string, size int) [][]string {
	var out [][]string
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		out = append(out, items[start:end])
	}
	return out
}

func uniqueNumbers(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, n := range in {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

func keepRequested(apts []llm.Apartment, requested []string) []llm.Apartment {
	want := make(map[string]struct{}, len(requested))
	for _, n := range requested {
		want[n] = struct{}{}
	}
	out := make([]llm.Apartment, 0, len(apts))
	for _, a := range apts {
		if _, ok := want[strings.TrimSpace(a.ApartmentNumber)]; ok {
			out = append(out, a)
		}
	}
	return out
}

func joinProviders(m map[string]struct{}) string {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	if len(names) == 1 {
		return names[0]
	}
	slices.Sort(names)
	return strings.Join(names, "+")
}
