/*
 * Copyright 2025 tomoncle.
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

package resources

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tomoncle/lima/types"
)

// LicenseStatus is the lifecycle state of a license.
type LicenseStatus int

const (
	StatusSold      LicenseStatus = 1
	StatusDelivered LicenseStatus = 2
	StatusActive    LicenseStatus = 3
	StatusInactive  LicenseStatus = 4
)

var licenseStatuses = []LicenseStatus{StatusSold, StatusDelivered, StatusActive, StatusInactive}

var licenseStatusNames = map[LicenseStatus][2]string{
	StatusSold:      {"SOLD", "sold, not yet delivered"},
	StatusDelivered: {"DELIVERED", "delivered to the customer"},
	StatusActive:    {"ACTIVE", "activated"},
	StatusInactive:  {"INACTIVE", "deactivated"},
}

var _ types.BaseEnum = StatusSold

// LicenseStatuses returns every valid status in ascending order.
func LicenseStatuses() []LicenseStatus {
	out := make([]LicenseStatus, len(licenseStatuses))
	copy(out, licenseStatuses)
	return out
}

func (s LicenseStatus) IsValid() bool {
	_, ok := licenseStatusNames[s]
	return ok
}

func (s LicenseStatus) Number() int {
	if !s.IsValid() {
		return types.IllegalValue
	}
	return int(s)
}

func (s LicenseStatus) Name() string {
	if n, ok := licenseStatusNames[s]; ok {
		return n[0]
	}
	return types.IllegalName
}

func (s LicenseStatus) Desc() string {
	if n, ok := licenseStatusNames[s]; ok {
		return n[1]
	}
	return types.IllegalDesc
}

func (s LicenseStatus) String() string { return s.Name() }

// ParseLicenseStatus accepts a status name (any case) or its number.
func ParseLicenseStatus(s string) (LicenseStatus, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		if st, ok := types.LookupEnum(licenseStatuses, n); ok {
			return st, nil
		}
		return 0, fmt.Errorf("unknown license status %d", n)
	}
	if st, ok := types.LookupEnumName(licenseStatuses, strings.ToUpper(s)); ok {
		return st, nil
	}
	return 0, fmt.Errorf("unknown license status %q", s)
}
