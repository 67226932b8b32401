// Copyright (c) 2025 ADBC Drivers Contributors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//         http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package datastream

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/adbc-drivers/datastream-go/driverbase"
)

// Outgoing channels are numbered MinChannel to MaxChannel.
const (
	MinChannel = 1
	MaxChannel = 5
)

func defaultErrors() *driverbase.ErrorHelper {
	return &driverbase.ErrorHelper{DriverName: DriverName, Logger: slog.Default()}
}

// ValidateChannel checks that n is an outgoing channel number.
func ValidateChannel(n int) error {
	return validateChannel(defaultErrors(), n)
}

func validateChannel(errs *driverbase.ErrorHelper, n int) error {
	if n < MinChannel || n > MaxChannel {
		return errs.ValueError("The outgoing connection number must be an integer between %d and %d, got %d", MinChannel, MaxChannel, n)
	}
	return nil
}

// ParseChannel parses and validates an outgoing channel number.
func ParseChannel(s string) (int, error) {
	errs := defaultErrors()
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, errs.TypeError("The outgoing connection number must be an integer value, got %q", s)
	}
	if err := validateChannel(errs, n); err != nil {
		return 0, err
	}
	return n, nil
}
