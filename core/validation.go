// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import (
	"fmt"
	"strings"
)

// ValidateLabeledExample validates a LabeledExample according to domain rules.
//
// Validation rules:
//   - Text must not be empty or whitespace only
func ValidateLabeledExample(example *LabeledExample) error {
	if example == nil {
		return fmt.Errorf("%w: example is nil", ErrData)
	}

	if strings.TrimSpace(example.Text) == "" {
		return fmt.Errorf("%w: %w", ErrData, ErrEmptyText)
	}

	return nil
}

// ValidateLabeledCorpus validates every example in a labeled corpus and reports
// the position of the first invalid one.
func ValidateLabeledCorpus(corpus []LabeledExample) error {
	if len(corpus) == 0 {
		return fmt.Errorf("%w: labeled corpus is empty", ErrData)
	}
	for i := range corpus {
		if err := ValidateLabeledExample(&corpus[i]); err != nil {
			return fmt.Errorf("example %d: %w", i, err)
		}
	}
	return nil
}

// ParseLabel interprets a corpus label cell as a binary relevance label.
// Accepted values are 0/1 and true/false, case-insensitive.
func ParseLabel(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "1.0", "true":
		return true, nil
	case "0", "0.0", "false":
		return false, nil
	default:
		return false, fmt.Errorf("%w: %q", ErrInvalidLabel, value)
	}
}
