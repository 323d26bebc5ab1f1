// Copyright 2025 Emrys Liu
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

package notify

import (
	"context"
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emrysliu/ftptransfer/pkg/config"
)

func TestMailerDisabledIsNoOp(t *testing.T) {
	ctx := zerolog.New(os.Stderr).WithContext(context.Background())

	// No SMTP server configured; disabled delivery must not touch the
	// network at all.
	m := NewMailer(config.EmailConfig{})
	err := m.Notify(ctx, false, "subject", "body", false)
	require.NoError(t, err, "disabled notification should be a silent no-op")
}

func TestNop(t *testing.T) {
	err := Nop{}.Notify(context.Background(), true, "s", "b", true)
	assert.NoError(t, err, "nop notifier should never fail")
}

func TestHTMLToPlain(t *testing.T) {
	body := `<html><body>
<h2>File Transfer Report</h2>
<table><tr><th>Found</th></tr>
<tr><td>2</td></tr></table>
<ul>
<li>a.csv</li>
<li>b &amp; c.csv</li>
</ul>
<p>Log file: /var/log/transfer.log<br>
Trace ID: trace-1</p>
</body></html>`

	plain := htmlToPlain(body)

	assert.Contains(t, plain, "File Transfer Report", "heading text should survive")
	assert.Contains(t, plain, "a.csv", "list items should survive")
	assert.Contains(t, plain, "b & c.csv", "entities should be unescaped")
	assert.Contains(t, plain, "Trace ID: trace-1", "line break should separate footer lines")
	assert.NotContains(t, plain, "<", "no markup should survive")
	assert.NotContains(t, plain, "&amp;", "no entities should survive")
}
