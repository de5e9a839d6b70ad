package service

import (
	"context"
	"log"

	"bapmate/internal/cache"
	"bapmate/internal/repository"
)

// nameResolver looks up display names through the profile-name cache and
// falls back to the users table for misses.
type nameResolver struct {
	userRepo repository.UserRepository
	cache    cache.NameCache // optional
}

func (r nameResolver) names(ctx context.Context, ids []string) (map[string]string, error) {
	names := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}

	if r.cache != nil {
		cached, err := r.cache.GetNames(ctx, ids)
		if err != nil {
			log.Printf("[NameCache] Lookup failed, using database: %v", err)
		} else {
			for id, name := range cached {
				names[id] = name
			}
		}
	}

	var missing []string
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, ok := names[id]; ok || seen[id] {
			continue
		}
		seen[id] = true
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return names, nil
	}

	summaries, err := r.userRepo.GetSummaries(ctx, missing)
	if err != nil {
		return nil, err
	}
	fresh := make(map[string]string, len(summaries))
	for _, s := range summaries {
		names[s.ID] = s.Name
		fresh[s.ID] = s.Name
	}
	if r.cache != nil {
		if err := r.cache.SetNames(ctx, fresh); err != nil {
			log.Printf("[NameCache] Store failed: %v", err)
		}
	}
	return names, nil
}

func (r nameResolver) name(ctx context.Context, id string) (string, error) {
	names, err := r.names(ctx, []string{id})
	if err != nil {
		return "", err
	}
	return names[id], nil
}
