package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nhle/uni-helper/internal/llm"
	"github.com/nhle/uni-helper/internal/model"
	"github.com/nhle/uni-helper/internal/store"
)

// LookaheadDays maps a named time filter to its window in days.
func LookaheadDays(filter *string) int {
	if filter == nil {
		return 30
	}
	switch *filter {
	case "today", "tomorrow":
		return 1
	case "this_week":
		return 7
	case "next_week":
		return 14
	default:
		return 30
	}
}

func (p *Pipeline) analyzeQuery(ctx context.Context, query string) model.QueryAnalysis {
	fallback := model.QueryAnalysis{QueryType: model.QueryGeneral, SearchTerms: []string{}}

	res := p.gen.GenerateJSON(ctx, SystemPrompt, formatQueryPrompt(query), queryMaxTokens)
	if res.Status == llm.StatusBackendFailed {
		p.log.Error().Err(res.Err).Msg("Query analysis failed")
		return fallback
	}

	f, err := res.Fields()
	if err != nil {
		p.log.Error().Err(err).Msg("Query analysis returned unusable data")
		return fallback
	}
	qa := model.QueryAnalysis{
		QueryType:   f.String("query_type"),
		TimeFilter:  f.OptString("time_filter"),
		ClassFilter: f.OptString("class_filter"),
		SearchTerms: f.Strings("search_terms"),
	}
	if qa.QueryType == "" {
		qa.QueryType = model.QueryGeneral
	}
	return qa
}

func (p *Pipeline) processQuery(ctx context.Context, msg model.ParsedMessage) model.Outcome {
	qa := p.analyzeQuery(ctx, msg.Body)
	p.log.Debug().Str("query_type", qa.QueryType).Strs("terms", qa.SearchTerms).Msg("Analyzed query")

	data := p.queryData(ctx, qa)

	reply, err := p.gen.Generate(ctx, SystemPrompt,
		formatQueryResponsePrompt(msg.Body, data), responseMaxTokens, responseTemperature)
	if err != nil || strings.TrimSpace(reply) == "" {
		p.log.Error().Err(err).Msg("Query response generation failed, replying with raw data")
		reply = data + "\n\n- Jarvis"
	}

	return model.Outcome{Success: true, Message: reply}
}

// queryData renders the records a query asks about as plain text.
func (p *Pipeline) queryData(ctx context.Context, qa model.QueryAnalysis) string {
	switch qa.QueryType {
	case model.QueryAssignmentsDue:
		days := LookaheadDays(qa.TimeFilter)
		assignments, err := p.store.UpcomingAssignments(ctx, store.AssignmentFilter{
			Within: time.Duration(days) * 24 * time.Hour,
		})
		if err != nil {
			p.log.Error().Err(err).Msg("Loading upcoming assignments failed")
			return "Assignment data is unavailable right now."
		}
		if len(assignments) == 0 {
			return "No upcoming assignments found."
		}
		var b strings.Builder
		b.WriteString("Upcoming Assignments:\n")
		for _, a := range assignments {
			fmt.Fprintf(&b, "- %s: %s (Due: %s)\n",
				a.ClassName, a.Title, a.DueDate.In(time.Local).Format(ReminderDateLayout))
		}
		return b.String()

	case model.QueryNotesSearch:
		if len(qa.SearchTerms) == 0 {
			return "Please specify what you'd like to search for."
		}
		term := strings.Join(qa.SearchTerms, " ")
		notes, err := p.store.SearchNotes(ctx, store.NoteFilter{Query: term, Limit: noteSearchLimit})
		if err != nil {
			p.log.Error().Err(err).Msg("Searching notes failed")
			return "Note search is unavailable right now."
		}
		if len(notes) == 0 {
			return fmt.Sprintf("No notes found matching '%s'.", term)
		}
		var b strings.Builder
		b.WriteString("Found Notes:\n")
		for _, n := range notes {
			class := n.ClassName
			if class == "" {
				class = "General"
			}
			fmt.Fprintf(&b, "- %s: %s...\n", class, truncate(n.Content, 100))
		}
		return b.String()

	case model.QueryClassInfo:
		classes, err := p.store.GetClasses(ctx)
		if err != nil {
			p.log.Error().Err(err).Msg("Listing classes failed")
			return "Class data is unavailable right now."
		}
		if len(classes) == 0 {
			return "No classes found in your system yet."
		}
		var b strings.Builder
		b.WriteString("Your Classes:\n")
		for _, c := range classes {
			fmt.Fprintf(&b, "- %s\n", c.Name)
		}
		return b.String()

	default:
		return "General query - no specific data retrieved."
	}
}
