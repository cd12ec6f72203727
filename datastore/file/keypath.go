/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package file

import (
	"regexp"
	"strings"

	"github.com/suparena/itemstore/errors"
)

var (
	uuidSegment   = regexp.MustCompile(`^(?i:[0-9a-f]{32}|[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12})$`)
	pathSeparator = regexp.MustCompile(`[/\\]`)
)

// KeyToPath maps a key to the relative path of its record folder. UUID segments
// are split into three path segments marked with "p" to limit the number of
// entries per folder, all other segments are marked with "s". Keys containing a
// backslash are rejected since PathToKey reads it as a separator.
func KeyToPath(key string) (string, error) {
	if key == "" {
		return "", nil
	}
	if strings.Contains(key, `\`) {
		return "", errors.NewFormatError(key, "backslash in key")
	}

	segments := strings.Split(key, "/")
	out := make([]string, 0, len(segments)+2)
	for _, seg := range segments {
		if uuidSegment.MatchString(seg) {
			out = append(out, "p"+seg[:1], "p"+seg[1:3], "p"+seg[3:])
			continue
		}
		out = append(out, "s"+seg)
	}
	return strings.Join(out, "/"), nil
}

// PathToKey reverses KeyToPath. Either slash direction separates segments.
func PathToKey(path string) (string, error) {
	if path == "" {
		return "", nil
	}

	segments := pathSeparator.Split(path, -1)
	out := make([]string, 0, len(segments))

	var run []string
	flush := func() error {
		if len(run)%3 != 0 {
			return errors.NewFormatError(path, "split segments must come in groups of three")
		}
		for i := 0; i < len(run); i += 3 {
			out = append(out, run[i]+run[i+1]+run[i+2])
		}
		run = run[:0]
		return nil
	}

	for _, seg := range segments {
		if seg == "" {
			return "", errors.NewFormatError(path, "empty segment")
		}
		switch seg[0] {
		case 'p', 'P':
			run = append(run, seg[1:])
		case 's', 'S':
			if err := flush(); err != nil {
				return "", err
			}
			out = append(out, seg[1:])
		default:
			return "", errors.NewFormatError(path, "segment "+seg+" lacks p/s marker")
		}
	}
	if err := flush(); err != nil {
		return "", err
	}

	return strings.Join(out, "/"), nil
}

// logicalDepth counts key segments represented by physical path segments, where
// each group of three "p" segments forms a single level.
func logicalDepth(physical []string) int {
	depth, run := 0, 0
	for _, seg := range physical {
		if seg == "" {
			continue
		}
		if seg[0] == 'p' || seg[0] == 'P' {
			run++
			continue
		}
		depth += (run + 2) / 3
		run = 0
		depth++
	}
	return depth + (run+2)/3
}
