package schedule

import (
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Current Turkish spelling, as produced by Turkish-aware upper casing.
var currentNames = map[string]time.Weekday{
	"PAZAR":     time.Sunday,
	"PAZARTESİ": time.Monday,
	"SALI":      time.Tuesday,
	"ÇARŞAMBA":  time.Wednesday,
	"PERŞEMBE":  time.Thursday,
	"CUMA":      time.Friday,
	"CUMARTESİ": time.Saturday,
}

// Legacy records were entered without Turkish characters.
var legacyNames = map[string]time.Weekday{
	"PAZAR":     time.Sunday,
	"PAZARTESI": time.Monday,
	"SALI":      time.Tuesday,
	"CARSAMBA":  time.Wednesday,
	"PERSEMBE":  time.Thursday,
	"CUMA":      time.Friday,
	"CUMARTESI": time.Saturday,
}

var englishNames = map[string]time.Weekday{
	"SUNDAY":    time.Sunday,
	"MONDAY":    time.Monday,
	"TUESDAY":   time.Tuesday,
	"WEDNESDAY": time.Wednesday,
	"THURSDAY":  time.Thursday,
	"FRIDAY":    time.Friday,
	"SATURDAY":  time.Saturday,
}

// everyDayPhrases are compared after folding, so one spelling per phrase is enough.
var everyDayPhrases = []string{
	"HER GÜN",
	"HERGÜN",
	"HAFTANIN HER GÜNÜ",
	"HAFTA İÇİ VE HAFTA SONU",
	"TÜM GÜNLER",
	"TÜM HAFTA",
	"7/24",
	"7 GÜN",
	"EVERY DAY",
	"EVERYDAY",
	"DAILY",
}

var (
	asciiFold = strings.NewReplacer(
		"İ", "I", "Ş", "S", "Ç", "C", "Ğ", "G", "Ü", "U", "Ö", "O", "Â", "A", "Î", "I", "Û", "U",
	)
	dashes = strings.NewReplacer("–", "-", "—", "-")
	spaces = regexp.MustCompile(`\s+`)

	everyDay = func() map[string]struct{} {
		m := make(map[string]struct{}, len(everyDayPhrases))
		for _, p := range everyDayPhrases {
			m[fold(p)] = struct{}{}
		}
		return m
	}()
)

// upperTR upper-cases with Turkish rules (i -> İ, ı -> I). Casers are not safe for
// concurrent use, so one is built per call.
func upperTR(s string) string {
	return cases.Upper(language.Turkish).String(s)
}

func fold(s string) string {
	s = spaces.ReplaceAllString(strings.TrimSpace(s), " ")
	return asciiFold.Replace(upperTR(s))
}

// ResolveDay maps a day name in any supported spelling to its weekday.
func ResolveDay(name string) (time.Weekday, bool) {
	n := strings.TrimSpace(name)
	if n == "" {
		return 0, false
	}
	upper := upperTR(n)
	if d, ok := currentNames[upper]; ok {
		return d, true
	}
	if d, ok := legacyNames[asciiFold.Replace(upper)]; ok {
		return d, true
	}
	if d, ok := englishNames[strings.ToUpper(n)]; ok {
		return d, true
	}
	return 0, false
}

// ParseWorkingDays parses a working days description. The forms are tried in order:
// a range ("Pazartesi-Cuma", wrapping the week when the start comes after the end), a
// comma separated list, an every-day phrase, and a single day name. Unresolvable input
// yields an empty set.
func ParseWorkingDays(text string) DaySet {
	s := strings.TrimSpace(dashes.Replace(text))
	if s == "" {
		return 0
	}

	if set, ok := parseRange(s); ok {
		return set
	}

	if strings.Contains(s, ",") {
		var set DaySet
		for _, part := range strings.Split(s, ",") {
			if r, ok := parseRange(part); ok {
				set |= r
				continue
			}
			if d, ok := ResolveDay(part); ok {
				set = set.Add(d)
			}
		}
		if !set.IsEmpty() {
			return set
		}
	}

	if _, ok := everyDay[fold(s)]; ok {
		return EveryDay
	}

	if d, ok := ResolveDay(s); ok {
		return NewDaySet(d)
	}
	return 0
}

func parseRange(s string) (DaySet, bool) {
	parts := strings.Split(s, "-")
	if len(parts) != 2 {
		return 0, false
	}
	start, ok := ResolveDay(parts[0])
	if !ok {
		return 0, false
	}
	end, ok := ResolveDay(parts[1])
	if !ok {
		return 0, false
	}
	return DayRange(start, end), true
}

// DayRange returns the days from start to end inclusive. When start comes after end the
// range runs to Saturday and continues from Sunday.
func DayRange(start, end time.Weekday) DaySet {
	var set DaySet
	if start <= end {
		for d := start; d <= end; d++ {
			set = set.Add(d)
		}
		return set
	}
	for d := start; d <= time.Saturday; d++ {
		set = set.Add(d)
	}
	for d := time.Sunday; d <= end; d++ {
		set = set.Add(d)
	}
	return set
}
