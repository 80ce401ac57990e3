package enrich

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/melodex/melodex/internal/application/queue"
	"github.com/melodex/melodex/internal/domain"
	"github.com/melodex/melodex/internal/upstream"
	"github.com/melodex/melodex/internal/upstream/discogs"
	"github.com/melodex/melodex/internal/upstream/genius"
)

func producerMetadata(t *testing.T, m domain.ProducerDiscoveryMetadata) domain.Metadata {
	t.Helper()
	md, err := domain.EncodeMetadata(m)
	require.NoError(t, err)
	return md
}

type recordedLink struct {
	trackID    string
	producerID string
	source     string
}

func TestProducerCredits_GeniusIsPrimarySource(t *testing.T) {
	geniusAPI := &mockGenius{
		searchSongs: func(ctx context.Context, query string) ([]genius.SongHit, error) {
			assert.Equal(t, "Zodiac Shit Flying Lotus", query)
			return []genius.SongHit{{ID: 101, Title: "Zodiac Shit", PrimaryArtist: "Flying Lotus"}}, nil
		},
		song: func(ctx context.Context, id int) (genius.Song, error) {
			assert.Equal(t, 101, id)
			return genius.Song{
				ID: 101,
				ProducerArtists: []genius.ArtistRef{
					{ID: 7, Name: "Flying Lotus"},
					{ID: 9, Name: "Thundercat"},
				},
			}, nil
		},
	}
	discogsCalled := false
	discogsAPI := &mockDiscogs{
		searchReleases: func(ctx context.Context, track, artist string) ([]discogs.ReleaseHit, error) {
			discogsCalled = true
			return nil, nil
		},
	}
	var producers []domain.Producer
	var links []recordedLink
	repo := &mockRepo{
		upsertProducer: func(ctx context.Context, producer domain.Producer) (string, error) {
			producers = append(producers, producer)
			return "prod-" + producer.GeniusID, nil
		},
		linkTrackProducer: func(ctx context.Context, trackID, producerID, source string) error {
			links = append(links, recordedLink{trackID, producerID, source})
			return nil
		},
	}

	h := NewProducerCredits(geniusAPI, discogsAPI, repo)
	result, err := h.Handle(context.Background(), producerMetadata(t, domain.ProducerDiscoveryMetadata{
		TrackID: "tr-row-1", Title: "Zodiac Shit", Artist: "Flying Lotus",
	}))
	require.NoError(t, err)

	assert.False(t, discogsCalled, "genius credits must not trigger the fallback")
	assert.Equal(t, queue.Result{ItemsTotal: 2, ItemsProcessed: 2}, result)
	require.Len(t, producers, 2)
	assert.Equal(t, domain.Producer{
		Name:           "Flying Lotus",
		NormalizedName: "flying lotus",
		GeniusID:       "7",
	}, producers[0])
	require.Len(t, links, 2)
	assert.Equal(t, recordedLink{"tr-row-1", "prod-7", SourceGenius}, links[0])
}

func TestProducerCredits_FallsBackToDiscogsOnEmptyGenius(t *testing.T) {
	discogsAPI := &mockDiscogs{
		searchReleases: func(ctx context.Context, track, artist string) ([]discogs.ReleaseHit, error) {
			assert.Equal(t, "Zodiac Shit", track)
			assert.Equal(t, "Flying Lotus", artist)
			return []discogs.ReleaseHit{{ID: 555, Title: "Cosmogramma"}}, nil
		},
		release: func(ctx context.Context, id int) (discogs.Release, error) {
			assert.Equal(t, 555, id)
			return discogs.Release{ID: 555, Producers: []string{"Flying Lotus"}}, nil
		},
	}
	var producers []domain.Producer
	var links []recordedLink
	repo := &mockRepo{
		upsertProducer: func(ctx context.Context, producer domain.Producer) (string, error) {
			producers = append(producers, producer)
			return "prod-1", nil
		},
		linkTrackProducer: func(ctx context.Context, trackID, producerID, source string) error {
			links = append(links, recordedLink{trackID, producerID, source})
			return nil
		},
	}

	h := NewProducerCredits(&mockGenius{}, discogsAPI, repo)
	result, err := h.Handle(context.Background(), producerMetadata(t, domain.ProducerDiscoveryMetadata{
		TrackID: "tr-row-1", Title: "Zodiac Shit", Artist: "Flying Lotus",
	}))
	require.NoError(t, err)

	assert.Equal(t, queue.Result{ItemsTotal: 1, ItemsProcessed: 1}, result)
	require.Len(t, producers, 1)
	assert.Equal(t, "555", producers[0].DiscogsID)
	assert.Empty(t, producers[0].GeniusID)
	require.Len(t, links, 1)
	assert.Equal(t, SourceDiscogs, links[0].source)
}

func TestProducerCredits_FallsBackToDiscogsOnGeniusError(t *testing.T) {
	geniusAPI := &mockGenius{
		searchSongs: func(ctx context.Context, query string) ([]genius.SongHit, error) {
			return nil, &upstream.StatusError{API: "genius", Endpoint: "/search", Status: 503}
		},
	}
	discogsAPI := &mockDiscogs{
		searchReleases: func(ctx context.Context, track, artist string) ([]discogs.ReleaseHit, error) {
			return []discogs.ReleaseHit{{ID: 1}}, nil
		},
		release: func(ctx context.Context, id int) (discogs.Release, error) {
			return discogs.Release{ID: 1, Producers: []string{"Rick Rubin"}}, nil
		},
	}

	h := NewProducerCredits(geniusAPI, discogsAPI, &mockRepo{})
	result, err := h.Handle(context.Background(), producerMetadata(t, domain.ProducerDiscoveryMetadata{
		TrackID: "tr-1", Title: "T", Artist: "A",
	}))
	require.NoError(t, err)

	assert.Equal(t, queue.Result{ItemsTotal: 1, ItemsProcessed: 1}, result)
}

func TestProducerCredits_BothSourcesDownRetries(t *testing.T) {
	geniusAPI := &mockGenius{
		searchSongs: func(ctx context.Context, query string) ([]genius.SongHit, error) {
			return nil, &upstream.StatusError{API: "genius", Endpoint: "/search", Status: 503}
		},
	}
	discogsAPI := &mockDiscogs{
		searchReleases: func(ctx context.Context, track, artist string) ([]discogs.ReleaseHit, error) {
			return nil, errors.New("connection refused")
		},
	}

	h := NewProducerCredits(geniusAPI, discogsAPI, &mockRepo{})
	_, err := h.Handle(context.Background(), producerMetadata(t, domain.ProducerDiscoveryMetadata{
		TrackID: "tr-1", Title: "T", Artist: "A",
	}))

	require.Error(t, err)
	assert.True(t, queue.IsRetryable(err))
}

func TestProducerCredits_NoCreditsAnywhereCompletesEmpty(t *testing.T) {
	h := NewProducerCredits(&mockGenius{}, &mockDiscogs{}, &mockRepo{})

	result, err := h.Handle(context.Background(), producerMetadata(t, domain.ProducerDiscoveryMetadata{
		TrackID: "tr-1", Title: "T", Artist: "A",
	}))
	require.NoError(t, err)

	assert.Equal(t, queue.Result{}, result)
}

func TestProducerCredits_SkipsUnusableNames(t *testing.T) {
	geniusAPI := &mockGenius{
		searchSongs: func(ctx context.Context, query string) ([]genius.SongHit, error) {
			return []genius.SongHit{{ID: 1}}, nil
		},
		song: func(ctx context.Context, id int) (genius.Song, error) {
			return genius.Song{ProducerArtists: []genius.ArtistRef{
				{ID: 1, Name: "   "},
				{ID: 2, Name: "Madlib"},
			}}, nil
		},
	}
	var producers []domain.Producer
	repo := &mockRepo{
		upsertProducer: func(ctx context.Context, producer domain.Producer) (string, error) {
			producers = append(producers, producer)
			return "prod-1", nil
		},
	}

	h := NewProducerCredits(geniusAPI, &mockDiscogs{}, repo)
	result, err := h.Handle(context.Background(), producerMetadata(t, domain.ProducerDiscoveryMetadata{
		TrackID: "tr-1", Title: "T", Artist: "A",
	}))
	require.NoError(t, err)

	// The blank credit is counted processed but never stored.
	assert.Equal(t, queue.Result{ItemsTotal: 2, ItemsProcessed: 2}, result)
	require.Len(t, producers, 1)
	assert.Equal(t, "madlib", producers[0].NormalizedName)
}

func TestProducerCredits_MissingTrackIdentityParks(t *testing.T) {
	h := NewProducerCredits(&mockGenius{}, &mockDiscogs{}, &mockRepo{})

	_, err := h.Handle(context.Background(), domain.Metadata{})

	require.Error(t, err)
	assert.True(t, queue.IsPermanent(err))
}
