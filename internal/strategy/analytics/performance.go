package analytics

import (
	"sort"
	"time"

	"multiStratBot/internal/domain"
)

// PerformanceMetrics summarizes a set of closed trades against a starting
// balance.
type PerformanceMetrics struct {
	TotalTrades        int
	WinningTrades      int
	LosingTrades       int
	WinRate            float64
	TotalProfit        float64
	MaxDrawdown        float64 // fraction of peak equity, 0.1 = 10%
	ProfitFactor       float64 // gross profit / gross loss
	AverageWin         float64
	AverageLoss        float64
	FinalBalance       float64
	ReturnOnInvestment float64

	MaxConsecutiveWins   int
	MaxConsecutiveLosses int
	AverageTradeDuration time.Duration
	Expectancy           float64
	MonthlyReturns       map[string]float64
	EquityCurve          []EquityPoint
}

// EquityPoint is the account balance after one trade closed.
type EquityPoint struct {
	Time     time.Time
	Value    float64
	Drawdown float64
}

// AnalyzePerformance computes performance metrics from closed trades. Trades
// are processed in exit-time order; the input slice is not modified.
func AnalyzePerformance(trades []domain.TradeRecord, initialBalance float64) *PerformanceMetrics {
	m := &PerformanceMetrics{
		FinalBalance:   initialBalance,
		MonthlyReturns: make(map[string]float64),
	}
	if len(trades) == 0 {
		return m
	}

	ordered := make([]domain.TradeRecord, len(trades))
	copy(ordered, trades)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].ExitTime.Before(ordered[j].ExitTime)
	})

	balance := initialBalance
	peak := initialBalance
	var grossProfit, grossLoss float64
	var streakWins, streakLosses int
	var totalDuration time.Duration

	for _, t := range ordered {
		m.TotalTrades++
		totalDuration += t.ExitTime.Sub(t.EntryTime)
		if t.PnL > 0 {
			m.WinningTrades++
			grossProfit += t.PnL
			m.AverageWin += (t.PnL - m.AverageWin) / float64(m.WinningTrades)
			streakWins++
			streakLosses = 0
		} else {
			m.LosingTrades++
			grossLoss -= t.PnL
			m.AverageLoss += (t.PnL - m.AverageLoss) / float64(m.LosingTrades)
			streakLosses++
			streakWins = 0
		}
		if streakWins > m.MaxConsecutiveWins {
			m.MaxConsecutiveWins = streakWins
		}
		if streakLosses > m.MaxConsecutiveLosses {
			m.MaxConsecutiveLosses = streakLosses
		}

		balance += t.PnL
		m.TotalProfit += t.PnL
		m.MonthlyReturns[t.ExitTime.Format("2006-01")] += t.PnL

		if balance > peak {
			peak = balance
		}
		dd := 0.0
		if peak > 0 {
			dd = (peak - balance) / peak
		}
		if dd > m.MaxDrawdown {
			m.MaxDrawdown = dd
		}
		m.EquityCurve = append(m.EquityCurve, EquityPoint{
			Time:     t.ExitTime,
			Value:    balance,
			Drawdown: dd,
		})
	}

	m.FinalBalance = balance
	m.WinRate = float64(m.WinningTrades) / float64(m.TotalTrades)
	if grossLoss > 0 {
		m.ProfitFactor = grossProfit / grossLoss
	}
	if initialBalance > 0 {
		m.ReturnOnInvestment = (balance - initialBalance) / initialBalance
	}
	m.AverageTradeDuration = totalDuration / time.Duration(m.TotalTrades)
	m.Expectancy = m.WinRate*m.AverageWin + (1-m.WinRate)*m.AverageLoss
	return m
}

// MonthlyReturn is a month's total PnL.
type MonthlyReturn struct {
	Month  time.Time
	Return float64
}

// SortedMonthlyReturns returns the monthly PnL series in calendar order.
func (m *PerformanceMetrics) SortedMonthlyReturns() []MonthlyReturn {
	returns := make([]MonthlyReturn, 0, len(m.MonthlyReturns))
	for month, profit := range m.MonthlyReturns {
		date, _ := time.Parse("2006-01", month)
		returns = append(returns, MonthlyReturn{Month: date, Return: profit})
	}
	sort.Slice(returns, func(i, j int) bool {
		return returns[i].Month.Before(returns[j].Month)
	})
	return returns
}
