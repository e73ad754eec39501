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

package probe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/storegrid/fleetwatch/pkg/logger"
	"github.com/storegrid/fleetwatch/pkg/models"
	"github.com/storegrid/fleetwatch/pkg/snmp"
)

func TestResolverDispatch(t *testing.T) {
	log := logger.NewTestLogger()
	r := NewResolver(snmp.NewClient(time.Second, 0, log), log)

	shellCreds := &models.ShellCredentials{Username: "admin", Password: "pw"}

	t.Run("switch with shell credentials gets the interactive prober", func(t *testing.T) {
		p := r.Resolve(models.PollTarget{Kind: models.KindSwitch, Shell: shellCreds})
		assert.IsType(t, &ShellProber{}, p)
	})

	t.Run("switch without shell credentials falls back to SNMP", func(t *testing.T) {
		p := r.Resolve(models.PollTarget{Kind: models.KindSwitch})
		assert.IsType(t, &SNMPSwitchProber{}, p)
	})

	t.Run("media player gets the HTTP prober", func(t *testing.T) {
		p := r.Resolve(models.PollTarget{Kind: models.KindMediaPlayer})
		assert.IsType(t, &HTTPMediaProber{}, p)
	})

	t.Run("printers and POS terminals get the generic prober", func(t *testing.T) {
		assert.IsType(t, &GenericProber{}, r.Resolve(models.PollTarget{Kind: models.KindPrinter}))
		assert.IsType(t, &GenericProber{}, r.Resolve(models.PollTarget{Kind: models.KindPOS}))
	})
}

func TestJoinPorts(t *testing.T) {
	assert.Equal(t, "22,80,9100", joinPorts([]int{22, 80, 9100}))
	assert.Empty(t, joinPorts(nil))
}
