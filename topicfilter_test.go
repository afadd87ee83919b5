package mqtt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMatchTopicExact(t *testing.T) {
	require.True(t, MatchTopic("a/b/c", "a/b/c"))
	require.False(t, MatchTopic("a/b/c", "a/b/d"))
}

func TestMatchTopicPlusWildcard(t *testing.T) {
	require.True(t, MatchTopic("a/+/c", "a/x/c"))
	require.False(t, MatchTopic("a/+/c", "a/x/y/c"))
	require.False(t, MatchTopic("a/+/c", "a/c"))
}

func TestMatchTopicHashWildcard(t *testing.T) {
	require.True(t, MatchTopic("a/#", "a/b/c"))
	require.True(t, MatchTopic("a/#", "a"))
	require.False(t, MatchTopic("a/#", "b/c"))
}

func TestMatchTopicDollarPrefixExcludedFromWildcards(t *testing.T) {
	require.False(t, MatchTopic("#", "$SYS/uptime"))
	require.True(t, MatchTopic("$SYS/#", "$SYS/uptime"))
}

func TestValidTopicFilter(t *testing.T) {
	require.True(t, ValidTopicFilter("a/b/#"))
	require.True(t, ValidTopicFilter("a/+/c"))
	require.False(t, ValidTopicFilter("a/#/c"))
	require.False(t, ValidTopicFilter("a/b+"))
	require.False(t, ValidTopicFilter(""))
}

func TestValidTopicName(t *testing.T) {
	require.True(t, ValidTopicName("a/b/c"))
	require.False(t, ValidTopicName("a/+"))
	require.False(t, ValidTopicName(""))
}
