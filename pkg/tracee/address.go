/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package tracee

import "fmt"

// Address is an opaque pointer-shaped value inside the tracee's address
// space. It must never be dereferenced from the controller's own address
// space; the distinct type exists solely to prevent that mistake.
type Address uint64

func (a Address) String() string {
	return fmt.Sprintf("%#x", uint64(a))
}

// Add returns the address offset by delta bytes.
func (a Address) Add(delta int64) Address {
	return Address(int64(a) + delta)
}
