// Package community extracts the supplementary draw detail (ball set,
// machine, rehearsal numbers, drawing order) from the forum post published
// after each draw.
package community

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/padraicbc/lottosync/models"
	"github.com/padraicbc/lottosync/normalize"
	"github.com/padraicbc/lottosync/syncerr"
)

// Detail is the parsed content of one post.
type Detail struct {
	DrawNo       int
	Date         string
	BallSet      int
	Machine      int
	Orientation  models.Orientation
	Rehearsal    []int
	DrawnOrder   []int
	PrimaryOrder []int
}

// ApplyTo copies the detail block onto a stored draw.
func (d Detail) ApplyTo(draw *models.Draw) {
	draw.DrawOrder = append([]int(nil), d.DrawnOrder...)
	draw.Rehearsal = append([]int(nil), d.Rehearsal...)
	draw.BallSet = d.BallSet
	draw.Machine = d.Machine
	draw.Orientation = d.Orientation
}

type state int

const (
	awaitingSection state = iota
	readingBallSet
	readingRehearsal
	readingDrawnOrder
	readingPrimaryOrder
	done
)

// ParseTitle reads the draw number between "제" and "회" and the date in
// parentheses, e.g. "제1150회 로또 추첨 (2024.12.14 토)". The date keeps its dotted
// form with month and day zero-padded.
func ParseTitle(title string) (int, string, error) {
	numText, ok := normalize.Between(title, "제", "회")
	if !ok || numText == "" {
		return 0, "", syncerr.Parse("draw_no", fmt.Sprintf("not found in title %q", title), nil)
	}
	drawNo, err := strconv.Atoi(numText)
	if err != nil || drawNo <= 0 {
		return 0, "", syncerr.Parse("draw_no", fmt.Sprintf("bad value %q", numText), err)
	}

	inner, ok := normalize.Between(title, "(", ")")
	if !ok || inner == "" {
		return 0, "", syncerr.Parse("date", fmt.Sprintf("not found in title %q", title), nil)
	}
	parts := strings.Split(strings.Fields(inner)[0], ".")
	if len(parts) < 3 {
		return 0, "", syncerr.Parse("date", fmt.Sprintf("bad value %q", inner), nil)
	}
	for i := range parts[:3] {
		if _, err := strconv.Atoi(parts[i]); err != nil {
			return 0, "", syncerr.Parse("date", fmt.Sprintf("bad value %q", inner), err)
		}
		if len(parts[i]) == 1 {
			parts[i] = "0" + parts[i]
		}
	}
	return drawNo, parts[0] + "." + parts[1] + "." + parts[2], nil
}

// Extract parses a post title and body. Any missing or invalid field is a
// ParseError; nothing partial is returned.
func Extract(title, body string) (Detail, error) {
	drawNo, date, err := ParseTitle(title)
	if err != nil {
		return Detail{}, err
	}
	d := Detail{DrawNo: drawNo, Date: date}

	var ballSet, machine, orientation string
	var rehearsal, drawn, primary []string

	st := awaitingSection
	for _, line := range normalize.Lines(body) {
		if st == done {
			break
		}
		switch {
		case strings.Contains(line, "1") && strings.Contains(line, "볼세트"):
			if strings.HasSuffix(line, "볼세트") {
				st = readingBallSet
			} else {
				f := strings.Fields(line)
				ballSet = f[len(f)-1]
				st = awaitingSection
			}
		case strings.Contains(line, "2") && strings.Contains(line, "모의"):
			st = readingRehearsal
		case strings.Contains(line, "3") && strings.Contains(line, "당첨번호"):
			st = readingDrawnOrder
		case strings.Contains(line, "4") && strings.Contains(line, "당첨번호"):
			st = readingPrimaryOrder
		case machine == "" && strings.Contains(line, "*") && strings.Contains(line, "추첨기") && strings.Contains(line, "호기"):
			machine = strings.TrimSpace(strings.ReplaceAll(afterColon(line), "호기", ""))
		case orientation == "" && strings.HasPrefix(line, "*볼배열방식"):
			orientation = strings.TrimSpace(strings.ReplaceAll(afterColon(line), "배열", ""))
		case st == readingBallSet:
			ballSet = line
			st = awaitingSection
		case st == readingRehearsal:
			rehearsal = append(rehearsal, strings.Fields(line)...)
			st = next(st, rehearsal)
		case st == readingDrawnOrder:
			drawn = append(drawn, strings.Fields(line)...)
			st = next(st, drawn)
		case st == readingPrimaryOrder:
			primary = append(primary, strings.Fields(line)...)
			st = next(st, primary)
		}
		if complete(ballSet, machine, orientation, rehearsal, drawn, primary) {
			st = done
		}
	}

	if d.Machine, err = choice("machine", machine, 1, 3); err != nil {
		return Detail{}, err
	}
	if d.BallSet, err = choice("ball_set", ballSet, 1, 5); err != nil {
		return Detail{}, err
	}
	if d.Orientation, err = parseOrientation(orientation); err != nil {
		return Detail{}, err
	}
	if d.Rehearsal, err = block("rehearsal", rehearsal); err != nil {
		return Detail{}, err
	}
	if d.DrawnOrder, err = block("drawn_order", drawn); err != nil {
		return Detail{}, err
	}
	if d.PrimaryOrder, err = block("primary_order", primary); err != nil {
		return Detail{}, err
	}
	if !models.SameNumbers(d.DrawnOrder, d.PrimaryOrder) {
		return Detail{}, syncerr.Parse("drawn_order", "not a permutation of the winning numbers", nil)
	}
	return d, nil
}

func next(st state, tokens []string) state {
	if len(tokens) >= 7 {
		return awaitingSection
	}
	return st
}

func complete(ballSet, machine, orientation string, blocks ...[]string) bool {
	if ballSet == "" || machine == "" || orientation == "" {
		return false
	}
	for _, b := range blocks {
		if len(b) < 7 {
			return false
		}
	}
	return true
}

func afterColon(line string) string {
	if i := strings.Index(line, ":"); i >= 0 {
		return line[i+1:]
	}
	f := strings.Fields(line)
	if len(f) < 2 {
		return ""
	}
	return strings.Join(f[1:], " ")
}

func choice(field, v string, lo, hi int) (int, error) {
	if v == "" {
		return 0, syncerr.Parse(field, "missing", nil)
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < lo || n > hi {
		return 0, syncerr.Parse(field, fmt.Sprintf("%q not in %d..%d", v, lo, hi), err)
	}
	return n, nil
}

func parseOrientation(v string) (models.Orientation, error) {
	switch strings.ToLower(v) {
	case "가로", "가로로", "horizontal", "horizontally":
		return models.OrientationHorizontal, nil
	case "세로", "세로로", "vertical", "vertically":
		return models.OrientationVertical, nil
	case "":
		return models.OrientationUnknown, syncerr.Parse("orientation", "missing", nil)
	default:
		return models.OrientationUnknown, syncerr.Parse("orientation", fmt.Sprintf("unknown value %q", v), nil)
	}
}

func block(field string, tokens []string) ([]int, error) {
	if len(tokens) != 7 {
		return nil, syncerr.Parse(field, fmt.Sprintf("want 7 numbers, got %d", len(tokens)), nil)
	}
	out := make([]int, 0, 7)
	for _, t := range tokens {
		n, err := strconv.Atoi(t)
		if err != nil {
			return nil, syncerr.Parse(field, fmt.Sprintf("%q is not a number", t), err)
		}
		if n < models.MinBall || n > models.MaxBall {
			return nil, syncerr.Parse(field, fmt.Sprintf("%d out of range", n), nil)
		}
		out = append(out, n)
	}
	return out, nil
}
