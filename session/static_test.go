package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/opinionprobe/models"
)

const listingPage = `<html><body>
<article><h2><a href="/opinion/2024-01-01/uno.html">Uno</a></h2></article>
<div class="c_h"><a href="https://elpais.com/opinion/dos.html">Dos</a></div>
<article><h3><a href="../deportes/tres.html">Tres</a></h3></article>
<img data-src="https://imagenes.elpais.com/x.jpg">
</body></html>`

func TestStaticSession_ElementsInDocumentOrder(t *testing.T) {
	ctx := context.Background()
	s := NewStaticSession(MapLoader(map[string]string{
		"https://elpais.com/opinion/": listingPage,
	}))
	require.NoError(t, s.Navigate(ctx, "https://elpais.com/opinion/"))

	els, err := s.Elements(ctx, "article h2 a, article h3 a, .c_h a")
	require.NoError(t, err)
	require.Len(t, els, 3)

	var hrefs []string
	for _, el := range els {
		h, err := el.Attr("href")
		require.NoError(t, err)
		hrefs = append(hrefs, h)
	}
	assert.Equal(t, []string{
		"https://elpais.com/opinion/2024-01-01/uno.html",
		"https://elpais.com/opinion/dos.html",
		"https://elpais.com/deportes/tres.html",
	}, hrefs)
}

func TestStaticSession_AttrMissingAndRaw(t *testing.T) {
	ctx := context.Background()
	s := NewStaticSession(MapLoader(map[string]string{"https://elpais.com/opinion/": listingPage}))
	require.NoError(t, s.Navigate(ctx, "https://elpais.com/opinion/"))

	img, err := s.WaitElement(ctx, "img", time.Second)
	require.NoError(t, err)

	src, err := img.Attr("src")
	require.NoError(t, err)
	assert.Empty(t, src)

	dataSrc, err := img.Attr("data-src")
	require.NoError(t, err)
	assert.Equal(t, "https://imagenes.elpais.com/x.jpg", dataSrc)
}

func TestStaticSession_WaitElementNoMatch(t *testing.T) {
	ctx := context.Background()
	s := NewStaticSession(MapLoader(map[string]string{"https://x/": "<p>hi</p>"}))
	require.NoError(t, s.Navigate(ctx, "https://x/"))

	_, err := s.WaitElement(ctx, "h1", time.Second)
	assert.ErrorIs(t, err, ErrNoElement)
}

func TestStaticSession_QueryBeforeNavigate(t *testing.T) {
	s := NewStaticSession(MapLoader(nil))

	_, err := s.Elements(context.Background(), "a")
	assert.ErrorIs(t, err, ErrNotLoaded)

	_, err = s.HTML(context.Background())
	assert.ErrorIs(t, err, ErrNotLoaded)
}

func TestStaticSession_NavigateFailure(t *testing.T) {
	s := NewStaticSession(MapLoader(nil))

	err := s.Navigate(context.Background(), "https://missing/")
	require.Error(t, err)
	assert.True(t, models.HasCode(err, models.ErrCodeNavigation))
}

func TestStaticSession_NavigateCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := NewStaticSession(func(ctx context.Context, _ string) (string, error) {
		return "", ctx.Err()
	})

	err := s.Navigate(ctx, "https://x/")
	require.Error(t, err)
	assert.True(t, models.HasCode(err, models.ErrCodeTimeout))
}

func TestStaticSession_InvalidSelector(t *testing.T) {
	ctx := context.Background()
	s := NewStaticSession(MapLoader(map[string]string{"https://x/": "<p>hi</p>"}))
	require.NoError(t, s.Navigate(ctx, "https://x/"))

	_, err := s.Elements(ctx, "p[")
	assert.Error(t, err)
}

func TestStaticSession_CloseDropsDocument(t *testing.T) {
	ctx := context.Background()
	s := NewStaticSession(MapLoader(map[string]string{"https://x/": "<p>hi</p>"}))
	require.NoError(t, s.Navigate(ctx, "https://x/"))
	require.NoError(t, s.Close())

	_, err := s.Elements(ctx, "p")
	assert.ErrorIs(t, err, ErrNotLoaded)
	assert.Error(t, s.Navigate(ctx, "https://x/"))
}

func TestStaticFactory_RejectsInvalidDescriptor(t *testing.T) {
	f := NewStaticFactory(MapLoader(nil))

	_, err := f.Acquire(context.Background(), models.ConfigurationDescriptor{Label: "empty"})
	require.Error(t, err)
	assert.True(t, models.HasCode(err, models.ErrCodeSessionAcquire))

	sess, err := f.Acquire(context.Background(), models.DefaultTargets()[0])
	require.NoError(t, err)
	assert.NoError(t, sess.Close())
}
