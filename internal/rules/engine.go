// Package rules provides the CEL-Go based sensor threshold evaluator and
// the confidence scorer that turns its output into an auto-decision.
package rules

import (
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/openagri/fieldclaim/internal/domain"
)

// Engine evaluates a sensor reading against the fixed threshold set.
// The checks are compiled once at construction from an immutable
// Thresholds value; evaluation is pure and side-effect free.
type Engine struct {
	violations []compiledCheck
	borderline []compiledCheck
}

type compiledCheck struct {
	name    string
	program cel.Program
}

// NewEngine compiles the violation and borderline checks for the given
// threshold set.
func NewEngine(thr domain.Thresholds) (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable("soil_moisture", cel.DoubleType),
		cel.Variable("air_temp", cel.DoubleType),
		cel.Variable("humidity", cel.DoubleType),
		cel.Variable("soil_temp", cel.DoubleType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	violationExprs := []struct {
		name string
		expr string
	}{
		{"soil_moisture_low", fmt.Sprintf("soil_moisture < %g", thr.SoilMoistureLow)},
		{"air_temp_high", fmt.Sprintf("air_temp > %g", thr.AirTempHigh)},
		{"humidity_low", fmt.Sprintf("humidity < %g", thr.HumidityLow)},
		{"soil_temp_high", fmt.Sprintf("soil_temp > %g", thr.SoilTempHigh)},
	}

	// Borderline bands are inclusive on both ends.
	borderlineExprs := []struct {
		name string
		expr string
	}{
		{"soil_moisture_band", bandExpr("soil_moisture", thr.SoilMoistureBand)},
		{"air_temp_band", bandExpr("air_temp", thr.AirTempBand)},
		{"humidity_band", bandExpr("humidity", thr.HumidityBand)},
		{"soil_temp_band", bandExpr("soil_temp", thr.SoilTempBand)},
	}

	e := &Engine{}
	for _, c := range violationExprs {
		program, err := compileCheck(env, c.name, c.expr)
		if err != nil {
			return nil, err
		}
		e.violations = append(e.violations, compiledCheck{name: c.name, program: program})
	}
	for _, c := range borderlineExprs {
		program, err := compileCheck(env, c.name, c.expr)
		if err != nil {
			return nil, err
		}
		e.borderline = append(e.borderline, compiledCheck{name: c.name, program: program})
	}

	return e, nil
}

func bandExpr(field string, b domain.Band) string {
	return fmt.Sprintf("%s >= %g && %s <= %g", field, b.Low, field, b.High)
}

func compileCheck(env *cel.Env, name, expr string) (cel.Program, error) {
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile check %s: %w", name, issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("check %s: expression must return bool, got %s", name, ast.OutputType())
	}
	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for check %s: %w", name, err)
	}
	return program, nil
}

// Evaluate counts threshold violations and detects borderline metrics for
// a reading. A nil reading yields the zero assessment; callers decide what
// "no reading" means, it is not a zero-violation rejection.
func (e *Engine) Evaluate(reading *domain.SensorReading) (domain.Assessment, error) {
	if reading == nil {
		return domain.Assessment{}, nil
	}

	activation := map[string]any{
		"soil_moisture": reading.SoilMoisture,
		"air_temp":      reading.AirTemp,
		"humidity":      reading.Humidity,
		"soil_temp":     reading.SoilTemp,
	}

	var assessment domain.Assessment

	for _, c := range e.violations {
		hit, err := evalBool(c, activation)
		if err != nil {
			return domain.Assessment{}, err
		}
		if hit {
			assessment.Violations++
		}
	}

	for _, c := range e.borderline {
		hit, err := evalBool(c, activation)
		if err != nil {
			return domain.Assessment{}, err
		}
		if hit {
			assessment.Borderline = true
			break
		}
	}

	return assessment, nil
}

func evalBool(c compiledCheck, activation map[string]any) (bool, error) {
	out, _, err := c.program.Eval(activation)
	if err != nil {
		return false, fmt.Errorf("check %s: %w", c.name, err)
	}
	b, ok := out.(types.Bool)
	if !ok {
		return false, fmt.Errorf("check %s: unexpected result type %T", c.name, out)
	}
	return bool(b), nil
}
