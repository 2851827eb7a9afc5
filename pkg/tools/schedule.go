package tools

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"

	"github.com/rbegg/go-max/pkg/graphdb"
)

// ScheduleTools answers questions about appointments and daily routines.
type ScheduleTools struct {
	db     *graphdb.Client
	logger *slog.Logger
}

// NewScheduleTools constructs the provider.
func NewScheduleTools(d Deps) (Provider, error) {
	if d.DB == nil {
		return nil, graphdb.ErrNotConnected
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ScheduleTools{db: d.DB, logger: logger.With("tools", "schedule")}, nil
}

func dateArg() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"target_date": map[string]interface{}{
				"type":        "string",
				"description": "The date to look up, as a valid ISO date string (YYYY-MM-DD)",
			},
		},
		"required": []string{"target_date"},
	}
}

// Tools implements Provider.
func (s *ScheduleTools) Tools() []Tool {
	return []Tool{
		{
			Name: "get_full_schedule",
			Description: "Use this as the DEFAULT tool for any general schedule question, " +
				"like 'What's my schedule?', 'What's on today?', or 'Am I busy tomorrow?'. " +
				"It combines appointments and daily routines into a single, sorted list. " +
				"The target_date arg must be a valid iso date string.",
			Parameters: dateArg(),
			Handler:    s.fullSchedule,
		},
		{
			Name: "get_appointments_for_date",
			Description: "Use this tool if the user asks specifically for 'appointments' " +
				"and NOT for their general 'schedule'. For general schedule " +
				"questions, use 'get_full_schedule'. The target_date arg must be a valid iso date string.",
			Parameters: dateArg(),
			Handler:    s.appointmentsForDate,
		},
		{
			Name: "get_routines_for_date",
			Description: "Use this tool if the user asks specifically for 'activities', 'daily routines', " +
				"'meal times', or 'medication times'. For general schedule " +
				"questions, use 'get_full_schedule'. The target_date arg must be a valid iso date string.",
			Parameters: dateArg(),
			Handler:    s.routinesForDate,
		},
	}
}

func (s *ScheduleTools) appointmentsForDate(ctx context.Context, args map[string]interface{}) (string, error) {
	targetDate := stringArg(args, "target_date")
	s.logger.Info("tool: get_appointments_for_date", "target_date", targetDate)
	if targetDate == "" {
		return ErrorPayload("invalid_arguments", "target_date is required"), nil
	}

	query := `
		WITH datetime($targetDate) AS dt
		OPTIONAL MATCH (d:Day {year: dt.year, month: dt.month, day: dt.day})
		OPTIONAL MATCH (d)-[:HAS_APPOINTMENT]->(appt:Appointment)
		WITH appt
		WHERE appt IS NOT NULL
		RETURN properties(appt) AS appointment`

	return queryRowsJSON(ctx, s.db, query, map[string]any{"targetDate": targetDate}, "appointment"), nil
}

func (s *ScheduleTools) routinesForDate(ctx context.Context, args map[string]interface{}) (string, error) {
	targetDate := stringArg(args, "target_date")
	s.logger.Info("tool: get_routines_for_date", "target_date", targetDate)
	if targetDate == "" {
		return ErrorPayload("invalid_arguments", "target_date is required"), nil
	}

	query := `
		WITH datetime($targetDate) AS dt
		WITH CASE dt.dayOfWeek
			WHEN 1 THEN 'Monday' WHEN 2 THEN 'Tuesday' WHEN 3 THEN 'Wednesday'
			WHEN 4 THEN 'Thursday' WHEN 5 THEN 'Friday' WHEN 6 THEN 'Saturday'
			ELSE 'Sunday'
		END AS dowString
		MATCH (u:User)
		OPTIONAL MATCH (u)-[:ATTENDS]->(routine:DailyRoutine)
		WHERE dowString IN routine.dayOfWeek
		WITH routine WHERE routine IS NOT NULL
		RETURN properties(routine) AS routine`

	return queryRowsJSON(ctx, s.db, query, map[string]any{"targetDate": targetDate}, "routine"), nil
}

// fullSchedule merges appointments and routines into one list sorted by
// start time, so the model does not have to interleave them itself.
func (s *ScheduleTools) fullSchedule(ctx context.Context, args map[string]interface{}) (string, error) {
	targetDate := stringArg(args, "target_date")
	s.logger.Info("tool: get_full_schedule", "target_date", targetDate)
	if targetDate == "" {
		return ErrorPayload("invalid_arguments", "target_date is required"), nil
	}

	apptsJSON, err := s.appointmentsForDate(ctx, args)
	if err != nil {
		return "", err
	}
	routinesJSON, err := s.routinesForDate(ctx, args)
	if err != nil {
		return "", err
	}

	appts, perr := parseEntryList(apptsJSON)
	if perr != "" {
		return perr, nil
	}
	routines, perr := parseEntryList(routinesJSON)
	if perr != "" {
		return perr, nil
	}

	entries := make([]map[string]any, 0, len(appts)+len(routines))
	for _, a := range appts {
		a["kind"] = "appointment"
		entries = append(entries, a)
	}
	for _, r := range routines {
		r["kind"] = "routine"
		entries = append(entries, r)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return startTimeOf(entries[i]) < startTimeOf(entries[j])
	})

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return ErrorPayload("encoding_failed", err.Error()), nil
	}
	return string(data), nil
}

// parseEntryList decodes a sub-tool's JSON output. If the sub-tool reported
// an error payload, it is propagated unchanged.
func parseEntryList(s string) ([]map[string]any, string) {
	var errPayload map[string]string
	if json.Unmarshal([]byte(s), &errPayload) == nil {
		if _, ok := errPayload["error"]; ok {
			return nil, s
		}
	}

	var entries []map[string]any
	if err := json.Unmarshal([]byte(s), &entries); err != nil {
		return nil, ErrorPayload("parsing_failed", err.Error())
	}
	return entries, ""
}

func startTimeOf(entry map[string]any) string {
	for _, key := range []string{"startTime", "start_time", "time"} {
		if v, ok := entry[key].(string); ok {
			return v
		}
	}
	return ""
}
