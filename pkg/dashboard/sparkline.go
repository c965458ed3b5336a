/*
 * Copyright 2025 Carver Automation Corporation.
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

package dashboard

import (
	"math"
	"strings"
)

// sparklineBlocks are block characters for 8-level vertical resolution (lowest to highest).
var sparklineBlocks = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// Sparkline renders the last width percentages on a fixed 0-100 scale.
// Shorter series are right-aligned; unknown values render as blanks.
func Sparkline(data []float64, width int) string {
	if width <= 0 {
		return ""
	}

	if len(data) > width {
		data = data[len(data)-width:]
	}

	var b strings.Builder

	b.WriteString(strings.Repeat(" ", width-len(data)))

	for _, v := range data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			b.WriteRune(' ')
			continue
		}

		b.WriteRune(sparklineBlocks[level(v)])
	}

	return b.String()
}

func level(v float64) int {
	idx := int(v / 100 * float64(len(sparklineBlocks)))

	return min(max(idx, 0), len(sparklineBlocks)-1)
}
