package tracing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewExporterDisabled(t *testing.T) {
	for _, urls := range [][2]string{{"", ""}, {"-", "-"}, {"", "-"}} {
		exporter, err := NewExporter(urls[0], urls[1])
		require.NoError(t, err)
		assert.Nil(t, exporter)
	}
}

func TestOtlpProviderInvalidURL(t *testing.T) {
	_, err := OtlpProvider("not a url")
	assert.Error(t, err)
}

func TestEncodeTracestateValue(t *testing.T) {
	assert.Equal(t, "xqueue-client submit --queue_python", EncodeTracestateValue(" xqueue-client submit --queue=python "))
}

func TestNewBaggage(t *testing.T) {
	bag, err := NewBaggage("#1", "xqueue-client submit body")
	require.NoError(t, err)
	assert.Equal(t, "#1", bag.Member("baggInstance").Value())
	assert.Equal(t, "xqueue-client_submit_body", bag.Member("baggCommand").Value())
}
