package handoff

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOfferAndTakeCapture(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Offer(Payload{Mode: ModeCaptureVisibleTab, DataURL: "data:image/png;base64,AAAA"}))

	v, ok := s.Get(SlotCaptureDataURL)
	assert.True(t, ok)
	assert.Equal(t, "data:image/png;base64,AAAA", v)

	p, ok := s.Take(ModeCaptureVisibleTab)
	require.True(t, ok)
	assert.Equal(t, "data:image/png;base64,AAAA", p.DataURL)
	assert.Zero(t, s.Len(), "take clears every slot")

	_, ok = s.Take(ModeCaptureVisibleTab)
	assert.False(t, ok, "a payload is consumed once")
}

func TestOfferReplacesPendingPayload(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Offer(Payload{Mode: ModeImage, DataURL: "data:image/png;base64,OLD", SourceURL: "https://a/old.png"}))
	require.NoError(t, s.Offer(Payload{Mode: ModeCaptureVisibleTab, DataURL: "data:image/png;base64,NEW"}))

	_, ok := s.Get(SlotImageDataURL)
	assert.False(t, ok, "stale image slot must be cleared")
	_, ok = s.Get(SlotImageSourceURL)
	assert.False(t, ok)
	assert.Equal(t, 1, s.Len())
}

func TestTakeWrongModeStillClears(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Offer(Payload{Mode: ModeImage, DataURL: "data:image/png;base64,AAAA", SourceURL: "https://a/b.png"}))

	_, ok := s.Take(ModeCaptureVisibleTab)
	assert.False(t, ok)
	assert.Zero(t, s.Len())
}

func TestBlankOfferClears(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Offer(Payload{Mode: ModeCaptureVisibleTab, DataURL: "x"}))
	require.NoError(t, s.Offer(Payload{Mode: ModeBlank}))
	assert.Zero(t, s.Len())

	_, ok := s.Take(ModeBlank)
	assert.False(t, ok)
}

func TestEmptyPayloadRejected(t *testing.T) {
	var s Store
	assert.ErrorIs(t, s.Offer(Payload{Mode: ModeImage}), ErrEmptyPayload)
	assert.ErrorIs(t, s.Offer(Payload{Mode: ModeCaptureVisibleTab}), ErrEmptyPayload)
}

func TestParseMode(t *testing.T) {
	assert.Equal(t, ModeImage, ParseMode("image"))
	assert.Equal(t, ModeCaptureVisibleTab, ParseMode("capture-visible-tab"))
	assert.Equal(t, ModeBlank, ParseMode("whatever"))
}

func TestConcurrentAccess(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = s.Offer(Payload{Mode: ModeCaptureVisibleTab, DataURL: "x"})
		}()
		go func() {
			defer wg.Done()
			s.Take(ModeCaptureVisibleTab)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, s.Len(), 1)
}
