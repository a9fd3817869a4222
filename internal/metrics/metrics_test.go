package metrics

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatusClass(t *testing.T) {
	t.Parallel()

	cases := map[int]string{
		-1:  "error",
		0:   "error",
		200: "2xx",
		204: "2xx",
		301: "3xx",
		404: "4xx",
		429: "4xx",
		500: "5xx",
		503: "5xx",
	}
	for code, want := range cases {
		require.Equal(t, want, StatusClass(code), "code %d", code)
	}
}
