package service

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"time"

	"bapmate/internal/model"
	"bapmate/internal/repository"
)

const (
	DefaultHotspotDays = 30
	DefaultHotspotTopN = 8
)

// HotspotService ranks regions by recent post activity.
type HotspotService struct {
	postRepo    repository.PostRepository
	defaultDays int
	defaultTopN int
	now         func() time.Time
}

func NewHotspotService(postRepo repository.PostRepository, days, topN int) *HotspotService {
	if days <= 0 {
		days = DefaultHotspotDays
	}
	if topN <= 0 {
		topN = DefaultHotspotTopN
	}
	return &HotspotService{postRepo: postRepo, defaultDays: days, defaultTopN: topN, now: time.Now}
}

// Hotspots aggregates posts of the last days days. Zero arguments fall back to
// the configured defaults.
func (s *HotspotService) Hotspots(ctx context.Context, days, topN int) (*model.HotspotListResponse, error) {
	if days <= 0 {
		days = s.defaultDays
	}
	if topN <= 0 {
		topN = s.defaultTopN
	}

	since := s.now().AddDate(0, 0, -days)
	posts, err := s.postRepo.ListForHotspots(ctx, since)
	if err != nil {
		return nil, err
	}
	return &model.HotspotListResponse{Hotspots: AggregateHotspots(posts, topN)}, nil
}

type hotspotAcc struct {
	count          int
	sumLat, sumLng float64
	located        int
}

// AggregateHotspots groups posts by region, counts them and averages the
// coordinates of the posts that carry both. The result is sorted by count
// desc, then key asc, and cut to topN.
func AggregateHotspots(posts []model.Post, topN int) []model.Hotspot {
	groups := make(map[string]*hotspotAcc)
	for _, p := range posts {
		key := strings.TrimSpace(p.Region)
		if key == "" {
			key = model.OtherRegion
		}
		acc, ok := groups[key]
		if !ok {
			acc = &hotspotAcc{}
			groups[key] = acc
		}
		acc.count++
		if p.Lat != nil && p.Lng != nil {
			acc.sumLat += *p.Lat
			acc.sumLng += *p.Lng
			acc.located++
		}
	}

	hotspots := make([]model.Hotspot, 0, len(groups))
	for key, acc := range groups {
		h := model.Hotspot{Key: key, Count: acc.count}
		if acc.located > 0 {
			lat := acc.sumLat / float64(acc.located)
			lng := acc.sumLng / float64(acc.located)
			h.Lat, h.Lng = &lat, &lng
		}
		hotspots = append(hotspots, h)
	}

	slices.SortFunc(hotspots, func(a, b model.Hotspot) int {
		return cmp.Or(cmp.Compare(b.Count, a.Count), cmp.Compare(a.Key, b.Key))
	})
	if topN > 0 && len(hotspots) > topN {
		hotspots = hotspots[:topN]
	}
	return hotspots
}
