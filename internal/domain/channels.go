package domain

import "strings"

// Bus channel names. The channel name doubles as the downstream event name,
// so the hub can wrap a bus payload in a wire envelope without translation.
const (
	ChannelOdds   = "odds-update"
	ChannelScores = "scores-update"

	propsChannelSuffix = "-props-update"
)

// PropsChannel returns the channel/event name for one bookmaker's props.
func PropsChannel(bookKey string) string {
	return bookKey + propsChannelSuffix
}

// PropsChannelPattern matches every per-book props channel.
const PropsChannelPattern = "*" + propsChannelSuffix

// IsPropsChannel reports whether a channel carries props data, which is
// entitlement-gated at the broadcast boundary.
func IsPropsChannel(channel string) bool {
	return strings.HasSuffix(channel, propsChannelSuffix)
}
