package logger

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMaskEmail(t *testing.T) {
	cases := map[string]string{
		"":                      "",
		"ab":                    "***",
		"username":              "u…e",
		"Ana.Perez@Example.com": "a…@e….com",
		"a@b.io":                "a@b.io",
	}
	for in, want := range cases {
		require.Equal(t, want, MaskEmail(in), in)
	}
	require.Equal(t, "to", Recipient("x@y.z").Key)
}
