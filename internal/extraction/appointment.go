package extraction

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Appointment is a resolved appointment. Date and Time are empty when the
// text only gave the other half.
type Appointment struct {
	Display string
	Date    string // YYYY-MM-DD
	Time    string // HH:MM:SS, 24h
}

var (
	partOfDayMorningRE   = regexp.MustCompile(`\b(?:por|en|de)\s+la\s+manana\b`)
	partOfDayAfternoonRE = regexp.MustCompile(`\b(?:por|en|de)\s+la\s+tarde\b`)
	noonRE               = regexp.MustCompile(`\b(?:medio\s*dia|mediodia)\b`)
	dayAfterTomorrowRE   = regexp.MustCompile(`\bpasado\s+manana\b`)
	tomorrowRE           = regexp.MustCompile(`\bmanana\b`)
	todayRE              = regexp.MustCompile(`\bhoy\b`)
	nextWeekRE           = regexp.MustCompile(`\b(?:proxima\s+semana|semana\s+que\s+(?:entra|viene))\b`)
	weekdayRE            = regexp.MustCompile(`\b(lunes|martes|miercoles|jueves|viernes|sabado|domingo)\b`)
	explicitDateRE       = regexp.MustCompile(`\b(\d{1,2})\s+de\s+(enero|febrero|marzo|abril|mayo|junio|julio|agosto|septiembre|setiembre|octubre|noviembre|diciembre)\b`)

	clockRE    = regexp.MustCompile(`\b(\d{1,2}):(\d{2})\s*(a\.?\s?m\.?|p\.?\s?m\.?)?`)
	halfPastRE = regexp.MustCompile(`\b(\d{1,2})\s+y\s+media\b`)
	meridiemRE = regexp.MustCompile(`\b(\d{1,2})\s*(a\.?\s?m\.?|p\.?\s?m\.?)(?:\W|$)`)
	atHourRE   = regexp.MustCompile(`\ba\s+las?\s+(\d{1,2})\b`)
)

var weekdays = map[string]time.Weekday{
	"domingo":   time.Sunday,
	"lunes":     time.Monday,
	"martes":    time.Tuesday,
	"miercoles": time.Wednesday,
	"jueves":    time.Thursday,
	"viernes":   time.Friday,
	"sabado":    time.Saturday,
}

var weekdayLabels = map[string]string{
	"domingo":   "Domingo",
	"lunes":     "Lunes",
	"martes":    "Martes",
	"miercoles": "Miércoles",
	"jueves":    "Jueves",
	"viernes":   "Viernes",
	"sabado":    "Sábado",
}

var months = map[string]time.Month{
	"enero": time.January, "febrero": time.February, "marzo": time.March, "abril": time.April,
	"mayo": time.May, "junio": time.June, "julio": time.July, "agosto": time.August,
	"septiembre": time.September, "setiembre": time.September, "octubre": time.October,
	"noviembre": time.November, "diciembre": time.December,
}

// ParseAppointment extracts a day and/or time from text, resolving relative days
// against now. Pass now in the dealer's timezone.
func ParseAppointment(text string, now time.Time) (Appointment, bool) {
	folded := Fold(text)

	dayLabel, date, hasDay := parseDay(folded, now)
	hour, minute, hasTime := parseTime(folded)

	if !hasDay && !hasTime {
		return Appointment{}, false
	}

	var appt Appointment
	parts := make([]string, 0, 2)
	if hasDay {
		parts = append(parts, dayLabel)
		appt.Date = date.Format("2006-01-02")
	}
	if hasTime {
		parts = append(parts, formatClock(hour, minute))
		appt.Time = fmt.Sprintf("%02d:%02d:00", hour, minute)
	}
	appt.Display = strings.Join(parts, " ")
	return appt, true
}

func parseDay(folded string, now time.Time) (string, time.Time, bool) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	if m := explicitDateRE.FindStringSubmatch(folded); m != nil {
		day, _ := strconv.Atoi(m[1])
		month := months[m[2]]
		if day >= 1 && day <= 31 {
			d := time.Date(today.Year(), month, day, 0, 0, 0, 0, now.Location())
			if d.Before(today) {
				d = d.AddDate(1, 0, 0)
			}
			return fmt.Sprintf("%d de %s", day, m[2]), d, true
		}
	}
	if dayAfterTomorrowRE.MatchString(folded) {
		return "Pasado mañana", today.AddDate(0, 0, 2), true
	}

	// "por la mañana" is a time of day, not tomorrow.
	withoutPartOfDay := partOfDayMorningRE.ReplaceAllString(folded, " ")
	if tomorrowRE.MatchString(withoutPartOfDay) {
		return "Mañana", today.AddDate(0, 0, 1), true
	}
	if todayRE.MatchString(folded) {
		return "Hoy", today, true
	}
	if m := weekdayRE.FindStringSubmatch(folded); m != nil {
		target := weekdays[m[1]]
		ahead := (int(target) - int(today.Weekday()) + 7) % 7
		if ahead == 0 {
			ahead = 7
		}
		return weekdayLabels[m[1]], today.AddDate(0, 0, ahead), true
	}
	if nextWeekRE.MatchString(folded) {
		ahead := (int(time.Monday) - int(today.Weekday()) + 7) % 7
		if ahead == 0 {
			ahead = 7
		}
		return "Próxima semana", today.AddDate(0, 0, ahead), true
	}
	return "", time.Time{}, false
}

func parseTime(folded string) (int, int, bool) {
	if m := clockRE.FindStringSubmatch(folded); m != nil {
		h, _ := strconv.Atoi(m[1])
		mm, _ := strconv.Atoi(m[2])
		if m[3] != "" {
			if h, ok := applyMeridiem(h, m[3]); ok && mm < 60 {
				return h, mm, true
			}
		} else if h < 24 && mm < 60 {
			if h <= 12 {
				h = inferHour(h)
			}
			return h, mm, true
		}
	}
	if m := halfPastRE.FindStringSubmatch(folded); m != nil {
		h, _ := strconv.Atoi(m[1])
		if h >= 1 && h <= 12 {
			return withPartOfDay(folded, h), 30, true
		}
	}
	if m := meridiemRE.FindStringSubmatch(folded); m != nil {
		h, _ := strconv.Atoi(m[1])
		if h, ok := applyMeridiem(h, m[2]); ok {
			return h, 0, true
		}
	}
	if m := atHourRE.FindStringSubmatch(folded); m != nil {
		h, _ := strconv.Atoi(m[1])
		if h >= 1 && h <= 12 {
			return withPartOfDay(folded, h), 0, true
		}
	}
	if noonRE.MatchString(folded) {
		return 12, 0, true
	}
	if partOfDayAfternoonRE.MatchString(folded) {
		return 15, 0, true
	}
	if partOfDayMorningRE.MatchString(folded) {
		return 10, 0, true
	}
	return 0, 0, false
}

func applyMeridiem(hour int, suffix string) (int, bool) {
	if hour < 1 || hour > 12 {
		return 0, false
	}
	pm := strings.HasPrefix(suffix, "p")
	switch {
	case pm && hour != 12:
		return hour + 12, true
	case !pm && hour == 12:
		return 0, true
	}
	return hour, true
}

// withPartOfDay resolves a bare 12h hour using "de la tarde"/"de la mañana"
// when present, otherwise business-hours inference.
func withPartOfDay(folded string, hour int) int {
	switch {
	case partOfDayAfternoonRE.MatchString(folded) || strings.Contains(folded, "de la noche"):
		if hour != 12 {
			return hour + 12
		}
		return hour
	case partOfDayMorningRE.MatchString(folded):
		if hour == 12 {
			return 0
		}
		return hour
	}
	return inferHour(hour)
}

// inferHour reads a bare hour as dealership business hours: 8-11 morning,
// 12-7 afternoon.
func inferHour(hour int) int {
	if hour >= 1 && hour <= 7 {
		return hour + 12
	}
	return hour
}

func formatClock(hour, minute int) string {
	suffix := "AM"
	h := hour
	if hour >= 12 {
		suffix = "PM"
		if hour > 12 {
			h = hour - 12
		}
	}
	if h == 0 {
		h = 12
	}
	return fmt.Sprintf("%d:%02d %s", h, minute, suffix)
}
