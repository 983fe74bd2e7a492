package ffmpeg

import (
	"fmt"
	"strings"
)

// OptionType represents a strongly typed FFmpeg option
type OptionType string

// FFmpeg option constants
const (
	OptionGeneratePTS        OptionType = "genpts"
	OptionIgnoreDTS          OptionType = "igndts"
	OptionIgnoreErrors       OptionType = "ignore_err"
	OptionWallclockTimestamp OptionType = "wallclock_ts"
	OptionAvoidNegativeTS    OptionType = "avoid_negative_ts"
	OptionThreadQueue1024    OptionType = "thread_queue_1024"
	OptionThreadQueue4096    OptionType = "thread_queue_4096"
	OptionLowLatency         OptionType = "low_latency"
	OptionCopyTimestamps     OptionType = "copyts"
	OptionRTSPOverTCP        OptionType = "rtsp_tcp"
	OptionReconnect          OptionType = "reconnect"
)

// OptionCategory represents option categories
type OptionCategory string

const (
	CategoryTiming      OptionCategory = "Timing"
	CategoryErrorHandle OptionCategory = "Error Handling"
	CategoryPerformance OptionCategory = "Performance"
	CategoryNetwork     OptionCategory = "Network"
)

// ExclusiveGroup represents a group of mutually exclusive options
type ExclusiveGroup string

const (
	GroupThreadQueue ExclusiveGroup = "thread_queue"
)

// Option represents available FFmpeg feature flags with metadata
type Option struct {
	Key            OptionType      `json:"key"`
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	Category       OptionCategory  `json:"category"`
	ExclusiveGroup *ExclusiveGroup `json:"exclusive_group,omitempty"`
	ConflictsWith  []OptionType    `json:"conflicts_with,omitempty"`
}

func group(g ExclusiveGroup) *ExclusiveGroup { return &g }

// AllOptions contains all available FFmpeg feature flags
var AllOptions = []Option{
	{
		Key:           OptionGeneratePTS,
		Name:          "Generate PTS",
		Description:   "Generate presentation timestamps for inputs missing them",
		Category:      CategoryTiming,
		ConflictsWith: []OptionType{OptionWallclockTimestamp, OptionCopyTimestamps},
	},
	{
		Key:         OptionIgnoreDTS,
		Name:        "Ignore DTS",
		Description: "Ignore decode timestamps to handle corrupted streams",
		Category:    CategoryErrorHandle,
	},
	{
		Key:         OptionIgnoreErrors,
		Name:        "Ignore Errors",
		Description: "Continue processing despite stream errors",
		Category:    CategoryErrorHandle,
	},
	{
		Key:           OptionWallclockTimestamp,
		Name:          "Wallclock Timestamps",
		Description:   "Use wallclock as timestamps",
		Category:      CategoryTiming,
		ConflictsWith: []OptionType{OptionGeneratePTS},
	},
	{
		Key:         OptionAvoidNegativeTS,
		Name:        "Avoid Negative Timestamps",
		Description: "Shift timestamps so output starts at zero",
		Category:    CategoryTiming,
	},
	{
		Key:            OptionThreadQueue1024,
		Name:           "Large Thread Queue",
		Description:    "Use 1024 thread queue size for bursty inputs",
		Category:       CategoryPerformance,
		ExclusiveGroup: group(GroupThreadQueue),
	},
	{
		Key:            OptionThreadQueue4096,
		Name:           "Extra Large Thread Queue",
		Description:    "Use 4096 thread queue size",
		Category:       CategoryPerformance,
		ExclusiveGroup: group(GroupThreadQueue),
	},
	{
		Key:         OptionLowLatency,
		Name:        "Low Latency Mode",
		Description: "Flush packets immediately and disable input buffering",
		Category:    CategoryPerformance,
	},
	{
		Key:           OptionCopyTimestamps,
		Name:          "Copy Timestamps",
		Description:   "Preserve input timestamps, starting at zero",
		Category:      CategoryTiming,
		ConflictsWith: []OptionType{OptionGeneratePTS},
	},
	{
		Key:         OptionRTSPOverTCP,
		Name:        "RTSP over TCP",
		Description: "Use interleaved TCP transport for rtsp:// inputs",
		Category:    CategoryNetwork,
	},
	{
		Key:         OptionReconnect,
		Name:        "Reconnect",
		Description: "Reconnect http(s) inputs on disconnect",
		Category:    CategoryNetwork,
	},
}

// GetOptionByKey returns an option by its key
func GetOptionByKey(key OptionType) *Option {
	for i := range AllOptions {
		if AllOptions[i].Key == key {
			return &AllOptions[i]
		}
	}
	return nil
}

// ParseOptions converts option names from configuration into OptionTypes
// and validates the combination.
func ParseOptions(names []string) ([]OptionType, error) {
	opts := make([]OptionType, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		key := OptionType(name)
		if GetOptionByKey(key) == nil {
			return nil, fmt.Errorf("unknown ffmpeg option %q", name)
		}
		opts = append(opts, key)
	}
	if err := ValidateOptions(opts); err != nil {
		return nil, err
	}
	return opts, nil
}

// ValidateOptions checks for conflicts and exclusive group violations
func ValidateOptions(selectedOptions []OptionType) error {
	exclusiveGroups := make(map[ExclusiveGroup][]OptionType)

	for _, optionKey := range selectedOptions {
		option := GetOptionByKey(optionKey)
		if option == nil {
			continue
		}
		if option.ExclusiveGroup != nil {
			exclusiveGroups[*option.ExclusiveGroup] = append(exclusiveGroups[*option.ExclusiveGroup], optionKey)
		}
	}

	for g, options := range exclusiveGroups {
		if len(options) > 1 {
			var optionNames []string
			for _, opt := range options {
				if option := GetOptionByKey(opt); option != nil {
					optionNames = append(optionNames, option.Name)
				}
			}
			return fmt.Errorf("multiple options from exclusive group '%s' selected: %s", g, strings.Join(optionNames, ", "))
		}
	}

	selectedSet := make(map[OptionType]bool)
	for _, opt := range selectedOptions {
		selectedSet[opt] = true
	}

	for _, optionKey := range selectedOptions {
		option := GetOptionByKey(optionKey)
		if option == nil {
			continue
		}
		for _, conflictOpt := range option.ConflictsWith {
			if selectedSet[conflictOpt] {
				conflictName := string(conflictOpt)
				if conflictOption := GetOptionByKey(conflictOpt); conflictOption != nil {
					conflictName = conflictOption.Name
				}
				return fmt.Errorf("option '%s' conflicts with '%s'", option.Name, conflictName)
			}
		}
	}

	return nil
}

// inputArgs returns the arguments an option contributes before -i.
// fflags values are collected separately so they end up in a single flag.
func inputArgs(options []OptionType, inputURL string) (args []string, fflags string) {
	for _, option := range options {
		switch option {
		case OptionGeneratePTS:
			fflags += "+genpts"
		case OptionIgnoreDTS:
			fflags += "+igndts"
		case OptionLowLatency:
			fflags += "+nobuffer+flush_packets"
			args = append(args, "-flags", "low_delay")
		case OptionIgnoreErrors:
			args = append(args, "-err_detect", "ignore_err")
		case OptionWallclockTimestamp:
			args = append(args, "-use_wallclock_as_timestamps", "1")
		case OptionThreadQueue1024:
			args = append(args, "-thread_queue_size", "1024")
		case OptionThreadQueue4096:
			args = append(args, "-thread_queue_size", "4096")
		case OptionRTSPOverTCP:
			if strings.HasPrefix(inputURL, "rtsp://") || strings.HasPrefix(inputURL, "rtsps://") {
				args = append(args, "-rtsp_transport", "tcp")
			}
		case OptionReconnect:
			if strings.HasPrefix(inputURL, "http://") || strings.HasPrefix(inputURL, "https://") {
				args = append(args, "-reconnect", "1", "-reconnect_streamed", "1", "-reconnect_delay_max", "5")
			}
		}
	}
	return args, fflags
}

// outputArgs returns the arguments an option contributes after -i.
func outputArgs(options []OptionType) []string {
	var args []string
	for _, option := range options {
		switch option {
		case OptionCopyTimestamps:
			args = append(args, "-copyts", "-start_at_zero")
		case OptionAvoidNegativeTS:
			args = append(args, "-avoid_negative_ts", "make_zero")
		}
	}
	return args
}
