// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package metrics exposes monitor readings and exchange outcomes to
// Prometheus.
package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Thermoquad/kellystat/pkg/kelly"
)

const namespace = "kelly"

// NewRegistry creates a registry with the Go and process collectors
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler returns the metrics HTTP handler for reg
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// Serve runs a metrics endpoint on addr until the server fails. Shutdown is
// left to process exit.
func Serve(addr, path string, reg *prometheus.Registry) error {
	mux := http.NewServeMux()
	mux.Handle(path, Handler(reg))
	err := http.ListenAndServe(addr, mux)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// MonitorMetrics holds the controller gauges and exchange counters
type MonitorMetrics struct {
	Throttle       prometheus.Gauge
	BrakePedal     prometheus.Gauge
	RPM            prometheus.Gauge
	PhaseCurrent   prometheus.Gauge
	BatteryVoltage prometheus.Gauge
	MotorTemp      prometheus.Gauge
	ControllerTemp prometheus.Gauge
	Faults         *prometheus.GaugeVec   // labels: fault
	Exchanges      *prometheus.CounterVec // labels: cmd, result=ok|error
	Attempts       *prometheus.CounterVec // labels: cmd
	Latency        *prometheus.HistogramVec
	Reconnects     prometheus.Counter
}

// NewMonitorMetrics registers and returns the monitor metrics
func NewMonitorMetrics(reg prometheus.Registerer) *MonitorMetrics {
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help})
	}

	m := &MonitorMetrics{
		Throttle:       gauge("throttle_percent", "Throttle position."),
		BrakePedal:     gauge("brake_pedal", "Brake pedal reading."),
		RPM:            gauge("motor_rpm", "Motor speed."),
		PhaseCurrent:   gauge("phase_current_amps", "Motor phase current."),
		BatteryVoltage: gauge("battery_volts", "Battery voltage."),
		MotorTemp:      gauge("motor_temp_celsius", "Motor temperature."),
		ControllerTemp: gauge("controller_temp_celsius", "Controller temperature."),
		Faults: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "fault_active",
			Help:      "1 while the named controller fault is reported.",
		}, []string{"fault"}),
		Exchanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exchanges_total",
			Help:      "Request/response exchanges by command and result.",
		}, []string{"cmd", "result"}),
		Attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exchange_attempts_total",
			Help:      "Frames written, including retries.",
		}, []string{"cmd"}),
		Latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "exchange_duration_seconds",
			Help:      "Exchange duration including retries.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2},
		}, []string{"cmd"}),
		Reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnects_total",
			Help:      "Transport reconnections.",
		}),
	}
	reg.MustRegister(m.Throttle, m.BrakePedal, m.RPM, m.PhaseCurrent, m.BatteryVoltage,
		m.MotorTemp, m.ControllerTemp, m.Faults, m.Exchanges, m.Attempts, m.Latency, m.Reconnects)
	return m
}

// ObserveSnapshot updates the gauges from a monitor snapshot
func (m *MonitorMetrics) ObserveSnapshot(s kelly.MonitorSnapshot) {
	m.Throttle.Set(float64(s.Throttle))
	m.BrakePedal.Set(float64(s.BrakePedal))
	m.RPM.Set(float64(s.RPM))
	m.PhaseCurrent.Set(float64(s.PhaseCurrent))
	m.BatteryVoltage.Set(float64(s.BatteryVoltage))
	m.MotorTemp.Set(float64(s.MotorTemp))
	m.ControllerTemp.Set(float64(s.ControllerTemp))

	for _, name := range kelly.ErrorMask(0xFFFF).Names() {
		m.Faults.WithLabelValues(name).Set(0)
	}
	for _, name := range s.Errors {
		m.Faults.WithLabelValues(name).Set(1)
	}
}

// ObserveExchange is a kelly.Observer that counts exchanges
func (m *MonitorMetrics) ObserveExchange(r kelly.ExchangeResult) {
	cmd := r.Command.String()
	result := "ok"
	if !r.Success() {
		result = "error"
	}
	m.Exchanges.WithLabelValues(cmd, result).Inc()
	m.Attempts.WithLabelValues(cmd).Add(float64(r.Attempts))
	m.Latency.WithLabelValues(cmd).Observe(r.Duration.Seconds())
}
