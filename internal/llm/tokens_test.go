package llm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTokenCounterCountIncreasesWithLength(t *testing.T) {
	tc, err := NewTokenCounter()
	require.NoError(t, err)

	short := tc.Count("hi")
	long := tc.Count("this is a much longer sentence with many more tokens in it")
	require.Less(t, short, long)
}

func TestCountMessagesSumsPerMessageOverhead(t *testing.T) {
	tc, err := NewTokenCounter()
	require.NoError(t, err)

	total := tc.CountMessages([]Message{
		{Role: RoleUser, Content: "hello"},
		{Role: RoleAssistant, Content: "hi"},
	})
	require.Greater(t, total, tc.Count("hello")+tc.Count("hi"))
}
