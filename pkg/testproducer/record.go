/*
Copyright 2022 The Numaproj Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package testproducer implements the file-driven test producer
// collaborator (spec.md §4.5): it reads a whitespace-separated primitive
// record format at Configure time, assembles it into one Set, and re-emits that
// Set on a timer for a configured number of iterations to drive a stage
// end to end without a real upstream.
package testproducer

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mroda88/trigger/pkg/isb"
)

// TPRecord is one row of the tab/space-separated fixture format spec.md
// §4.5 names: time_start, time_over_threshold, time_peak, channel,
// adc_integral, adc_peak, detid, type.
type TPRecord struct {
	TimeStartTick     isb.Tick
	TimeOverThreshold uint64
	TimePeak          uint64
	Channel           uint32
	ADCIntegral       int64
	ADCPeak           int64
	DetID             uint32
	Type              uint32
}

func (r TPRecord) TimeStart() isb.Tick { return r.TimeStartTick }

// ParseRecords reads whitespace-separated TPRecord rows from r, one per
// line. Blank lines and lines starting with '#' are skipped.
func ParseRecords(r io.Reader) ([]TPRecord, error) {
	var out []TPRecord
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rec, err := parseRecord(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		out = append(out, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}
	return out, nil
}

func parseRecord(line string) (TPRecord, error) {
	fields := strings.Fields(line)
	if len(fields) != 8 {
		return TPRecord{}, fmt.Errorf("expected 8 fields, got %d", len(fields))
	}
	timeStart, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return TPRecord{}, fmt.Errorf("time_start: %w", err)
	}
	timeOverThreshold, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return TPRecord{}, fmt.Errorf("time_over_threshold: %w", err)
	}
	timePeak, err := strconv.ParseUint(fields[2], 10, 64)
	if err != nil {
		return TPRecord{}, fmt.Errorf("time_peak: %w", err)
	}
	channel, err := strconv.ParseUint(fields[3], 10, 32)
	if err != nil {
		return TPRecord{}, fmt.Errorf("channel: %w", err)
	}
	adcIntegral, err := strconv.ParseInt(fields[4], 10, 64)
	if err != nil {
		return TPRecord{}, fmt.Errorf("adc_integral: %w", err)
	}
	adcPeak, err := strconv.ParseInt(fields[5], 10, 64)
	if err != nil {
		return TPRecord{}, fmt.Errorf("adc_peak: %w", err)
	}
	detID, err := strconv.ParseUint(fields[6], 10, 32)
	if err != nil {
		return TPRecord{}, fmt.Errorf("detid: %w", err)
	}
	typ, err := strconv.ParseUint(fields[7], 10, 32)
	if err != nil {
		return TPRecord{}, fmt.Errorf("type: %w", err)
	}
	return TPRecord{
		TimeStartTick:     isb.Tick(timeStart),
		TimeOverThreshold: timeOverThreshold,
		TimePeak:          timePeak,
		Channel:           uint32(channel),
		ADCIntegral:       adcIntegral,
		ADCPeak:           adcPeak,
		DetID:             uint32(detID),
		Type:              uint32(typ),
	}, nil
}
