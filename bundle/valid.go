// SPDX-FileCopyrightText: 2026 The bpagent Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bundle

// CheckValid runs the bundle-level and control-flag validity checks,
// returning a *multierror.Error, or nil.
func (b Bundle) CheckValid() error {
	return b.checkValid()
}
