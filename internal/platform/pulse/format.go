package pulse

import (
	"fmt"
	"strconv"
	"strings"

	"stereoguard/internal/ports"
)

// parseSampleSpec reads pactl's "s16le 2ch 48000Hz".
func parseSampleSpec(spec string) (ports.Format, error) {
	var (
		format          ports.Format
		gotRate, gotChs bool
	)
	for _, field := range strings.Fields(spec) {
		switch {
		case strings.HasSuffix(field, "ch"):
			n, err := strconv.ParseUint(strings.TrimSuffix(field, "ch"), 10, 16)
			if err != nil {
				return ports.Format{}, fmt.Errorf("bad channel count in %q", spec)
			}
			format.Channels = uint16(n)
			gotChs = true
		case strings.HasSuffix(field, "Hz"):
			n, err := strconv.ParseUint(strings.TrimSuffix(field, "Hz"), 10, 32)
			if err != nil {
				return ports.Format{}, fmt.Errorf("bad sample rate in %q", spec)
			}
			format.SampleRate = uint32(n)
			gotRate = true
		}
	}
	if !gotRate || !gotChs {
		return ports.Format{}, fmt.Errorf("incomplete sample specification %q", spec)
	}
	return format, nil
}

// channelCount counts the positions in a channel map such as
// "front-left,front-right" or "mono".
func channelCount(channelMap string) uint32 {
	var n uint32
	for _, pos := range strings.Split(channelMap, ",") {
		if strings.TrimSpace(pos) != "" {
			n++
		}
	}
	return n
}
