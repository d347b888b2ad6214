package recording

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/mamadbah2/broiler/internal/domain/models"
)

// ErrInvalidArguments indicates the command payload could not be parsed.
var ErrInvalidArguments = errors.New("invalid command arguments")

// ErrUnsupportedCommand indicates we do not yet support the requested command.
var ErrUnsupportedCommand = errors.New("unsupported command")

const dateFormat = "2006-01-02"

// ReportingAdapter renders the summary returned by the report command.
type ReportingAdapter interface {
	CycleSummary(ctx context.Context, cycleID int64) (string, error)
}

// HandleCommand runs a chat command against the most recent active cycle
// and returns the reply text.
//
//	/log <mortality> <feed_kg> [water_l] [weight_g] [feed source...]
//	/health <vaccine|medicine> <name...> [cost]
//	/sale <amount> [description...]
//	/expense <amount> [description...]
//	/report
func (s *Service) HandleCommand(ctx context.Context, cmd models.Command, sender string) (string, error) {
	s.logger.Debug("dispatching command", zap.String("command", string(cmd.Type)), zap.String("sender", sender), zap.Strings("args", cmd.Args))

	if cmd.Type == models.CommandUnknown {
		return "", ErrUnsupportedCommand
	}

	cycle, err := s.ActiveCycle(ctx)
	if err != nil {
		return "", err
	}
	session := models.Session{Operator: sender, CycleID: cycle.ID}

	switch cmd.Type {
	case models.CommandLog:
		input, err := buildDailyLog(cmd)
		if err != nil {
			return "", err
		}
		entry, err := s.RecordDailyLog(ctx, session, input)
		if err != nil {
			return "", err
		}
		message := fmt.Sprintf("Day %d logged for %s: %d dead, %.2f kg feed.", entry.AgeInDays, cycle.Name, entry.MortalityCount, entry.FeedKg)
		if entry.HasWeightSample() {
			message += fmt.Sprintf(" Weight %.0f g.", entry.SampledWeightGrams)
		}
		return message, nil
	case models.CommandHealth:
		input, err := buildHealth(cmd)
		if err != nil {
			return "", err
		}
		record, err := s.AddHealthRecord(ctx, session, input)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s %s recorded on %s (cost %.2f).", record.Kind, record.Name, record.Date.Format(dateFormat), record.Cost), nil
	case models.CommandSale:
		input, err := buildTransaction(cmd, models.TransactionIncome)
		if err != nil {
			return "", err
		}
		txn, err := s.AddTransaction(ctx, session, input)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Sale of %.2f recorded for %s.", txn.Amount, cycle.Name), nil
	case models.CommandExpense:
		input, err := buildTransaction(cmd, models.TransactionExpense)
		if err != nil {
			return "", err
		}
		txn, err := s.AddTransaction(ctx, session, input)
		if err != nil {
			return "", err
		}
		message := fmt.Sprintf("Expense of %.2f logged on %s.", txn.Amount, txn.Date.Format(dateFormat))
		if txn.Description != "" {
			message += " " + txn.Description + "."
		}
		return message, nil
	case models.CommandReport:
		if s.reporting == nil {
			return "", ErrUnsupportedCommand
		}
		return s.reporting.CycleSummary(ctx, cycle.ID)
	default:
		return "", ErrUnsupportedCommand
	}
}

func buildDailyLog(cmd models.Command) (DailyLogInput, error) {
	if len(cmd.Args) < 2 {
		return DailyLogInput{}, ErrInvalidArguments
	}

	mortality, err := strconv.Atoi(cmd.Args[0])
	if err != nil {
		return DailyLogInput{}, ErrInvalidArguments
	}
	feedKg, err := strconv.ParseFloat(cmd.Args[1], 64)
	if err != nil {
		return DailyLogInput{}, ErrInvalidArguments
	}
	input := DailyLogInput{MortalityCount: mortality, FeedKg: feedKg}

	// Optional numeric readings come first, anything after names the feed source.
	idx := 2
	if idx < len(cmd.Args) {
		if v, err := strconv.ParseFloat(cmd.Args[idx], 64); err == nil {
			input.WaterLiters = v
			idx++
		}
	}
	if idx < len(cmd.Args) {
		if v, err := strconv.ParseFloat(cmd.Args[idx], 64); err == nil {
			input.SampledWeightGrams = v
			idx++
		}
	}
	if idx < len(cmd.Args) {
		input.FeedSource = strings.Join(cmd.Args[idx:], " ")
	}
	return input, nil
}

func buildHealth(cmd models.Command) (HealthInput, error) {
	if len(cmd.Args) < 2 {
		return HealthInput{}, ErrInvalidArguments
	}

	kind := models.HealthKind(cmd.Args[0])
	if kind != models.HealthVaccine && kind != models.HealthMedicine {
		return HealthInput{}, ErrInvalidArguments
	}

	nameArgs := cmd.Args[1:]
	cost := 0.0
	if len(nameArgs) > 1 {
		if v, err := strconv.ParseFloat(nameArgs[len(nameArgs)-1], 64); err == nil {
			cost = v
			nameArgs = nameArgs[:len(nameArgs)-1]
		}
	}
	return HealthInput{Kind: kind, Cost: cost, Name: strings.Join(nameArgs, " ")}, nil
}

func buildTransaction(cmd models.Command, typ models.TransactionType) (TransactionInput, error) {
	if len(cmd.Args) == 0 {
		return TransactionInput{}, ErrInvalidArguments
	}

	amount, err := strconv.ParseFloat(cmd.Args[0], 64)
	if err != nil || amount <= 0 {
		return TransactionInput{}, ErrInvalidArguments
	}
	return TransactionInput{Type: typ, Amount: amount, Description: strings.Join(cmd.Args[1:], " ")}, nil
}
