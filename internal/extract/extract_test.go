package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePage = `<html><head>
<style>body { color: red; }</style>
<script>window.__state = {};</script>
</head><body>
<h1>Quiz 7</h1>
<p>What is the sum of the values in the file?</p>

<p>Submit to <code>/answer</code>.</p>
<audio src="clip.opus"></audio>
<audio><source src="/media/backup.mp3"></audio>
<a href="data/values.csv">values</a>
<a href="data/values.csv">values again</a>
<a href="/docs/report.pdf">report</a>
<a href="https://example.org/page.html">unrelated</a>
</body></html>`

func TestTextStripsScriptsAndStyles(t *testing.T) {
	t.Parallel()

	text, err := Text([]byte(samplePage))
	require.NoError(t, err)
	assert.Contains(t, text, "Quiz 7")
	assert.Contains(t, text, "What is the sum of the values in the file?")
	assert.NotContains(t, text, "window.__state")
	assert.NotContains(t, text, "color: red")
	assert.NotContains(t, text, "\n\n\n")
}

func TestMediaSourcesResolvesAgainstPage(t *testing.T) {
	t.Parallel()

	srcs, err := MediaSources([]byte(samplePage), "http://quiz.example/q/7/")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"http://quiz.example/q/7/clip.opus",
		"http://quiz.example/media/backup.mp3",
	}, srcs)
}

func TestDataLinksFiltersByExtension(t *testing.T) {
	t.Parallel()

	links, err := DataLinks([]byte(samplePage), "http://quiz.example/q/7/", []string{".csv", ".pdf"})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"http://quiz.example/q/7/data/values.csv",
		"http://quiz.example/docs/report.pdf",
	}, links)
}

func TestTextEmptyBody(t *testing.T) {
	t.Parallel()

	text, err := Text([]byte(""))
	require.NoError(t, err)
	assert.Equal(t, "", text)
}
