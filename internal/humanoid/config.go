package humanoid

import (
	"math"
	"math/rand"
)

// Config holds the tunable parameters of the input simulation. Mean/StdDev
// pairs describe the population; FinalizeSessionPersona samples one concrete
// operator from them so every session moves and types a little differently.
type Config struct {
	Rng *rand.Rand `json:"-" yaml:"-"`

	// Fitts's law parameters (movement time in ms as A + B*log2(1 + D/W)).
	FittsAMean   float64 `mapstructure:"fitts_a_mean" yaml:"fitts_a_mean"`
	FittsAStdDev float64 `mapstructure:"fitts_a_stddev" yaml:"fitts_a_stddev"`
	FittsBMean   float64 `mapstructure:"fitts_b_mean" yaml:"fitts_b_mean"`
	FittsBStdDev float64 `mapstructure:"fitts_b_stddev" yaml:"fitts_b_stddev"`

	// Trajectory noise.
	GaussianStrengthMean   float64 `mapstructure:"gaussian_strength_mean" yaml:"gaussian_strength_mean"`
	GaussianStrengthStdDev float64 `mapstructure:"gaussian_strength_stddev" yaml:"gaussian_strength_stddev"`
	PerlinAmplitudeMean    float64 `mapstructure:"perlin_amplitude_mean" yaml:"perlin_amplitude_mean"`
	PerlinAmplitudeStdDev  float64 `mapstructure:"perlin_amplitude_stddev" yaml:"perlin_amplitude_stddev"`

	// CurveBend scales how far the Bezier control points bow away from the
	// straight line, as a fraction of the movement distance.
	CurveBend float64 `mapstructure:"curve_bend" yaml:"curve_bend"`

	// Clicking behavior.
	ClickHoldMinMs int `mapstructure:"click_hold_min_ms" yaml:"click_hold_min_ms"`
	ClickHoldMaxMs int `mapstructure:"click_hold_max_ms" yaml:"click_hold_max_ms"`

	// Keyboard behavior.
	KeyHoldMeanMs   float64 `mapstructure:"key_hold_mean_ms" yaml:"key_hold_mean_ms"`
	KeyHoldStdDevMs float64 `mapstructure:"key_hold_stddev_ms" yaml:"key_hold_stddev_ms"`

	// Inter-key delay (IKD) parameters.
	KeyPauseMean          float64 `mapstructure:"key_pause_mean" yaml:"key_pause_mean"`
	KeyPauseStdDev        float64 `mapstructure:"key_pause_stddev" yaml:"key_pause_stddev"`
	KeyPauseMin           float64 `mapstructure:"key_pause_min" yaml:"key_pause_min"`
	KeyPauseNgramFactor2  float64 `mapstructure:"key_pause_ngram_factor2" yaml:"key_pause_ngram_factor2"`
	KeyPauseNgramFactor3  float64 `mapstructure:"key_pause_ngram_factor3" yaml:"key_pause_ngram_factor3"`
	KeyPauseFatigueFactor float64 `mapstructure:"key_pause_fatigue_factor" yaml:"key_pause_fatigue_factor"`

	// Fatigue modeling.
	FatigueIncreaseRate float64 `mapstructure:"fatigue_increase_rate" yaml:"fatigue_increase_rate"`
	FatigueRecoveryRate float64 `mapstructure:"fatigue_recovery_rate" yaml:"fatigue_recovery_rate"`

	// Sampled instance parameters, fixed per session.
	FittsA           float64 `mapstructure:"-" yaml:"-"`
	FittsB           float64 `mapstructure:"-" yaml:"-"`
	GaussianStrength float64 `mapstructure:"-" yaml:"-"`
	PerlinAmplitude  float64 `mapstructure:"-" yaml:"-"`
	KeyHoldMean      float64 `mapstructure:"-" yaml:"-"`
	KeyHoldStdDev    float64 `mapstructure:"-" yaml:"-"`
}

// DefaultConfig returns a configuration representing an average user.
func DefaultConfig() Config {
	return Config{
		FittsAMean: 100.0, FittsAStdDev: 15.0,
		FittsBMean: 120.0, FittsBStdDev: 20.0,
		GaussianStrengthMean: 0.5, GaussianStrengthStdDev: 0.1,
		PerlinAmplitudeMean: 2.5, PerlinAmplitudeStdDev: 0.5,
		CurveBend:      0.2,
		ClickHoldMinMs: 50, ClickHoldMaxMs: 120,
		KeyHoldMeanMs: 55.0, KeyHoldStdDevMs: 15.0,
		KeyPauseMean:          70.0,
		KeyPauseStdDev:        28.0,
		KeyPauseMin:           35.0,
		KeyPauseNgramFactor2:  0.7,
		KeyPauseNgramFactor3:  0.55,
		KeyPauseFatigueFactor: 0.3,
		FatigueIncreaseRate:   0.005,
		FatigueRecoveryRate:   0.01,
	}
}

// FinalizeSessionPersona samples the fixed instance parameters for a session.
func (c *Config) FinalizeSessionPersona(rng *rand.Rand) {
	c.Rng = rng
	c.FittsA = sampleGaussian(rng, c.FittsAMean, c.FittsAStdDev)
	c.FittsB = sampleGaussian(rng, c.FittsBMean, c.FittsBStdDev)
	c.GaussianStrength = sampleGaussian(rng, c.GaussianStrengthMean, c.GaussianStrengthStdDev)
	c.PerlinAmplitude = sampleGaussian(rng, c.PerlinAmplitudeMean, c.PerlinAmplitudeStdDev)
	c.KeyHoldMean = sampleGaussian(rng, c.KeyHoldMeanMs, c.KeyHoldStdDevMs)
	c.KeyHoldStdDev = c.KeyHoldStdDevMs

	// Keep sampled values inside sane bounds.
	c.FittsA = math.Max(20.0, c.FittsA)
	c.FittsB = math.Max(40.0, c.FittsB)
	c.GaussianStrength = math.Max(0.0, c.GaussianStrength)
	c.PerlinAmplitude = math.Max(0.0, c.PerlinAmplitude)
	c.KeyHoldMean = math.Max(20.0, c.KeyHoldMean)

	if c.CurveBend <= 0 {
		c.CurveBend = 0.2
	}
	if c.ClickHoldMaxMs <= c.ClickHoldMinMs {
		c.ClickHoldMaxMs = c.ClickHoldMinMs + 1
	}
}

func sampleGaussian(rng *rand.Rand, mean, stdDev float64) float64 {
	if rng == nil {
		return mean
	}
	return mean + rng.NormFloat64()*stdDev
}
