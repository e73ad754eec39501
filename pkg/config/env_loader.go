/*
 * Copyright 2025 Storegrid, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInvalidMaxHosts         = errors.New("SCAN_MAX_HOSTS must be positive")
	ErrInvalidConcurrency      = errors.New("SCAN_TCP_CONCURRENCY must be positive")
	ErrInvalidPollInterval     = errors.New("POLL_INTERVAL_SECONDS must be positive")
	ErrInvalidConfirmations    = errors.New("POLL_OFFLINE_CONFIRMATIONS must be at least 1")
	ErrInvalidCircuitThreshold = errors.New("POLL_CIRCUIT_FAILURE_THRESHOLD must be at least 1")

	errDstMustBeStructPointer = errors.New("dst must be a non-nil pointer to a struct")
)

// loadFromEnv overlays environment variables onto dst using `env` struct
// tags. Duration fields carry a unit option ("s" or "ms") naming the unit
// the raw integer value is expressed in; plain Go duration strings are
// accepted as well.
func loadFromEnv(dst interface{}) error {
	v := reflect.ValueOf(dst)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return errDstMustBeStructPointer
	}

	v = v.Elem()
	if v.Kind() != reflect.Struct {
		return errDstMustBeStructPointer
	}

	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("env")
		if tag == "" {
			continue
		}

		name, unit := tag, ""
		if idx := strings.Index(tag, ","); idx >= 0 {
			name, unit = tag[:idx], tag[idx+1:]
		}

		raw, ok := os.LookupEnv(name)
		if !ok || raw == "" {
			continue
		}

		if err := setField(v.Field(i), raw, unit); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}

	return nil
}

func setField(field reflect.Value, raw, unit string) error {
	if field.Type() == reflect.TypeOf(time.Duration(0)) {
		d, err := parseDuration(raw, unit)
		if err != nil {
			return err
		}

		field.SetInt(int64(d))

		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)
	case reflect.Int, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return err
		}

		field.SetInt(n)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}

		field.SetBool(b)
	default:
		return fmt.Errorf("unsupported field kind %s", field.Kind())
	}

	return nil
}

func parseDuration(raw, unit string) (time.Duration, error) {
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		switch unit {
		case "ms":
			return time.Duration(n) * time.Millisecond, nil
		default:
			return time.Duration(n) * time.Second, nil
		}
	}

	return time.ParseDuration(raw)
}
