// Package masking redacts credential material before it reaches the audit
// trail. Provider rows only hold secret names, but names still hint at
// which vault entries exist, so they are partially hidden as well.
package masking

import "strings"

const maskToken = "****"

// MaskSecret keeps everything up to the last underscore plus at most the
// final four characters: "AZURE_SPEECH_KEY" becomes "AZURE_SPEECH_****".
func MaskSecret(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}

	prefix, remainder := "", trimmed
	if i := strings.LastIndex(trimmed, "_"); i >= 0 && i < len(trimmed)-1 {
		prefix, remainder = trimmed[:i+1], trimmed[i+1:]
	}
	if len(remainder) <= 4 {
		return prefix + maskToken
	}
	return prefix + maskToken + remainder[len(remainder)-4:]
}

// MaskFields returns a copy of metadata with the string values under keys
// masked. Other entries are copied as is.
func MaskFields(metadata map[string]any, keys ...string) map[string]any {
	if metadata == nil {
		return nil
	}
	sensitive := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		sensitive[key] = struct{}{}
	}

	out := make(map[string]any, len(metadata))
	for key, value := range metadata {
		if _, ok := sensitive[key]; ok {
			out[key] = maskValue(value)
			continue
		}
		out[key] = value
	}
	return out
}

func maskValue(value any) any {
	switch cast := value.(type) {
	case string:
		return MaskSecret(cast)
	case *string:
		if cast == nil {
			return nil
		}
		return MaskSecret(*cast)
	case []string:
		out := make([]string, 0, len(cast))
		for _, item := range cast {
			out = append(out, MaskSecret(item))
		}
		return out
	default:
		return value
	}
}
