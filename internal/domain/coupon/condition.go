package coupon

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Condition is one parsed eligibility rule. Evaluate is pure: it returns nil
// when the cart passes, or a *ConditionNotMetError describing why it failed.
// All rules on a set combine with logical AND.
type Condition interface {
	Evaluate(info CartInfo, now time.Time) error
}

// ParseConditions parses every detail of a set up front, so that a corrupt
// value surfaces as a single *InvalidConditionError before any rule runs.
func ParseConditions(details []ConditionDetail) ([]Condition, error) {
	conds := make([]Condition, 0, len(details))
	for _, d := range details {
		c, err := ParseCondition(d)
		if err != nil {
			return nil, err
		}
		conds = append(conds, c)
	}
	return conds, nil
}

// ParseCondition converts one stored detail into its typed condition.
// Unknown types and unparseable values fail closed with *InvalidConditionError.
func ParseCondition(d ConditionDetail) (Condition, error) {
	switch d.Type {
	case ConditionMinOrderValue:
		threshold, err := decimal.NewFromString(strings.TrimSpace(d.Value))
		if err != nil {
			return nil, &InvalidConditionError{Type: d.Type, Value: d.Value, Cause: "not a number"}
		}
		return minOrderValueCondition{threshold: threshold}, nil

	case ConditionTier:
		return tierCondition{tier: d.Value}, nil

	case ConditionNewUser:
		// Only the literal "true" constrains; any other value is a no-op rule.
		return newUserCondition{required: d.Value == "true"}, nil

	case ConditionDayOfWeek:
		return parseDayOfWeek(d)

	case ConditionHourOfDay:
		return parseHourOfDay(d)

	default:
		return nil, &InvalidConditionError{Type: d.Type, Value: d.Value, Cause: "unknown condition type"}
	}
}

type minOrderValueCondition struct {
	threshold decimal.Decimal
}

func (c minOrderValueCondition) Evaluate(info CartInfo, _ time.Time) error {
	if info.Subtotal.GreaterThanOrEqual(c.threshold) {
		return nil
	}
	return &ConditionNotMetError{
		Type:   ConditionMinOrderValue,
		Reason: fmt.Sprintf("Minimum order value of %s is required", c.threshold),
	}
}

type tierCondition struct {
	tier string
}

func (c tierCondition) Evaluate(info CartInfo, _ time.Time) error {
	if info.MembershipTierID == c.tier {
		return nil
	}
	return &ConditionNotMetError{
		Type:   ConditionTier,
		Reason: fmt.Sprintf("This coupon requires membership tier %s", c.tier),
	}
}

type newUserCondition struct {
	required bool
}

func (c newUserCondition) Evaluate(info CartInfo, _ time.Time) error {
	if !c.required || info.IsNewUser {
		return nil
	}
	return &ConditionNotMetError{
		Type:   ConditionNewUser,
		Reason: "This coupon is only available to newly registered users",
	}
}

var weekdayCodes = map[string]time.Weekday{
	"SUN": time.Sunday,
	"MON": time.Monday,
	"TUE": time.Tuesday,
	"WED": time.Wednesday,
	"THU": time.Thursday,
	"FRI": time.Friday,
	"SAT": time.Saturday,
}

type dayOfWeekCondition struct {
	days [7]bool
	raw  string
}

func parseDayOfWeek(d ConditionDetail) (Condition, error) {
	c := dayOfWeekCondition{raw: d.Value}
	parts := strings.Split(d.Value, ",")
	for _, p := range parts {
		code := strings.ToUpper(strings.TrimSpace(p))
		if code == "" {
			return nil, &InvalidConditionError{Type: d.Type, Value: d.Value, Cause: "empty day code"}
		}
		day, ok := weekdayCodes[code]
		if !ok {
			return nil, &InvalidConditionError{
				Type: d.Type, Value: d.Value,
				Cause: fmt.Sprintf("unknown day code %q", code),
			}
		}
		c.days[day] = true
	}
	return c, nil
}

func (c dayOfWeekCondition) Evaluate(_ CartInfo, now time.Time) error {
	if c.days[now.Weekday()] {
		return nil
	}
	return &ConditionNotMetError{
		Type:   ConditionDayOfWeek,
		Reason: fmt.Sprintf("This coupon is only valid on %s", c.raw),
	}
}

// hourOfDayCondition holds a [start, end) window in minutes of the day.
// A window whose end is not after its start never matches; wrapping across
// midnight is not supported.
type hourOfDayCondition struct {
	start int
	end   int
	raw   string
}

func parseHourOfDay(d ConditionDetail) (Condition, error) {
	parts := strings.SplitN(d.Value, "-", 2)
	if len(parts) != 2 {
		return nil, &InvalidConditionError{Type: d.Type, Value: d.Value, Cause: "expected HH:MM-HH:MM"}
	}
	start, err := parseMinuteOfDay(parts[0])
	if err != nil {
		return nil, &InvalidConditionError{Type: d.Type, Value: d.Value, Cause: err.Error()}
	}
	end, err := parseMinuteOfDay(parts[1])
	if err != nil {
		return nil, &InvalidConditionError{Type: d.Type, Value: d.Value, Cause: err.Error()}
	}
	return hourOfDayCondition{start: start, end: end, raw: d.Value}, nil
}

// parseMinuteOfDay parses "HH" or "HH:MM" into minutes since midnight.
func parseMinuteOfDay(s string) (int, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	hour, err := strconv.Atoi(hh)
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("bad hour %q", hh)
	}
	minute := 0
	if ok {
		minute, err = strconv.Atoi(mm)
		if err != nil || minute < 0 || minute > 59 {
			return 0, fmt.Errorf("bad minute %q", mm)
		}
	}
	return hour*60 + minute, nil
}

func (c hourOfDayCondition) Evaluate(_ CartInfo, now time.Time) error {
	minute := now.Hour()*60 + now.Minute()
	if minute >= c.start && minute < c.end {
		return nil
	}
	return &ConditionNotMetError{
		Type:   ConditionHourOfDay,
		Reason: fmt.Sprintf("This coupon is only valid between %s", c.raw),
	}
}
