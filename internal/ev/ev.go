package ev

import (
	"fmt"
	"math"

	"github.com/betbot/sniper/internal/domain"
)

const (
	// FwdThreshold EV 低于该值时放弃
	FwdThreshold = 0.05
	// MaxEv EV 上限（防止估计失真放大仓位）
	MaxEv = 0.80

	minTargetOdds = 0.20
	maxTargetOdds = 0.80

	minEstimate = 0.50
	maxEstimate = 0.92

	minBonus = -0.05
	maxBonus = 0.04

	minSafeFraction = 0.02
)

// Calculator EV 与仓位计算（纯函数，无状态依赖外部环境）
type Calculator struct {
	MinBet         float64
	MaxBet         float64
	InitialBalance float64
}

// Input 一次评估的输入
type Input struct {
	PriceDiffPct  float64 // 带符号，(price-open)/open×100
	UpOdds        float64
	DownOdds      float64
	Velocity      float64 // %/秒
	MomentumScore float64 // [-1,+1]，已与价格方向对齐
	TimeBonus     float64
	Balance       float64
}

// Evaluate 计算方向、EV 与下注额
func (c *Calculator) Evaluate(in Input) domain.EvResult {
	direction := domain.ActionBuyYes
	target := in.UpOdds
	if in.PriceDiffPct <= 0 {
		direction = domain.ActionBuyNo
		target = in.DownOdds
	}
	// 目标赔率直接取下注侧买一价
	target = clamp(target, minTargetOdds, maxTargetOdds)

	estimate := EstimateProb(in.PriceDiffPct, in.Velocity, in.MomentumScore, in.TimeBonus)
	evVal := math.Min(estimate/target-1, MaxEv)
	gap := estimate - target

	if evVal <= FwdThreshold {
		return domain.EvResult{
			Direction: domain.ActionHold,
			Ev:        evVal,
			Estimate:  estimate,
			Gap:       gap,
			Strategy:  domain.StrategySniper,
			Reason:    fmt.Sprintf("EV %.1f%% ≤ 임계 %.0f%%", evVal*100, FwdThreshold*100),
		}
	}

	stake := c.kellyStake(evVal, target, in.Balance)

	side := "UP"
	if direction == domain.ActionBuyNo {
		side = "DOWN"
	}
	return domain.EvResult{
		Direction: direction,
		Ev:        evVal,
		Estimate:  estimate,
		Gap:       gap,
		Stake:     stake,
		Strategy:  domain.StrategySniper,
		Reason: fmt.Sprintf("%s Δ%.3f%% 추정%.2f 오즈%.2f EV%.1f%%",
			side, in.PriceDiffPct, estimate, target, evVal*100),
	}
}

// EstimateProb 胜率估计：变动幅度分桶 + 속도/모멘텀 보정
func EstimateProb(changePct, velocity, directedMomentum, timeBonus float64) float64 {
	base := baseProb(math.Abs(changePct))

	bonus := velocityBonus(velocity, changePct) +
		momentumBonus(directedMomentum) +
		timeBonus
	bonus = clamp(bonus, minBonus, maxBonus)

	return clamp(base+bonus, minEstimate, maxEstimate)
}

func baseProb(absPct float64) float64 {
	switch {
	case absPct >= 1.00:
		return 0.92
	case absPct >= 0.70:
		return 0.90
	case absPct >= 0.50:
		return 0.88
	case absPct >= 0.35:
		return 0.86
	case absPct >= 0.25:
		return 0.83
	case absPct >= 0.15:
		return 0.79
	case absPct >= 0.10:
		return 0.73
	case absPct >= 0.08:
		return 0.67
	case absPct >= 0.05:
		return 0.63
	case absPct >= 0.03:
		return 0.58
	default:
		return 0.53
	}
}

func velocityBonus(velocity, changePct float64) float64 {
	// 速度与价格方向背离时直接扣分
	if velocity != 0 && changePct != 0 && math.Signbit(velocity) != math.Signbit(changePct) {
		return -0.03
	}
	av := math.Abs(velocity)
	switch {
	case av >= 0.05:
		return 0.04
	case av >= 0.02:
		return 0.02
	case av >= 0.01:
		return 0.01
	default:
		return 0
	}
}

func momentumBonus(m float64) float64 {
	switch {
	case m >= 0.8:
		return 0.04
	case m >= 0.6:
		return 0.02
	case m >= 0.3:
		return 0
	case m >= 0:
		return -0.02
	case m >= -0.3:
		return -0.03
	default:
		return -0.05
	}
}

// kellyStake 分数凯利仓位
func (c *Calculator) kellyStake(evVal, target, balance float64) float64 {
	kellyFraction := evVal / (1/target - 1)

	var kellyMult float64
	switch {
	case evVal >= 1.0:
		kellyMult = 0.35
	case evVal >= 0.5:
		kellyMult = 0.30
	case evVal >= 0.3:
		kellyMult = 0.25
	default:
		kellyMult = 0.20
	}

	safeFraction := kellyFraction * kellyMult
	if safeFraction < minSafeFraction {
		safeFraction = minSafeFraction
	}
	// 资金回撤越深，仓位上限越低
	maxFraction := 0.05
	if c.InitialBalance > 0 {
		switch ratio := balance / c.InitialBalance; {
		case ratio < 1:
			maxFraction = 0.02
		case ratio < 2:
			maxFraction = 0.03
		case ratio < 5:
			maxFraction = 0.04
		}
	}
	if safeFraction > maxFraction {
		safeFraction = maxFraction
	}

	return clamp(balance*safeFraction, c.MinBet, c.MaxBet)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
