/**
* Copyright 2018 Comcast Cable Communications Management, LLC
* Licensed under the Apache License, Version 2.0 (the "License");
* you may not use this file except in compliance with the License.
* You may obtain a copy of the License at
* http://www.apache.org/licenses/LICENSE-2.0
* Unless required by applicable law or agreed to in writing, software
* distributed under the License is distributed on an "AS IS" BASIS,
* WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
* See the License for the specific language governing permissions and
* limitations under the License.
 */

package cache

import (
	"errors"

	"github.com/Comcast/proxygate/internal/perr"
)

// ErrEntryTooLarge is returned by Storage.Insert when a payload
// exceeds the plugin's configured max_file_size. The cache plugin
// treats this as a CacheTransient fault: the request still serves,
// just without being cached.
var ErrEntryTooLarge error = &perr.CacheTransient{Op: "insert", Err: errors.New("entry exceeds max_file_size")}

// ErrLockTimeout is the CacheTransient value for a waiter whose
// lock_timeout elapses before the filling task releases. Waiter.Wait
// reports that case by returning false, not this error. Per spec
// §4.D, a timed-out waiter proceeds as an independent miss; it is not
// a fatal condition.
var ErrLockTimeout error = &perr.CacheTransient{Op: "lock", Err: errors.New("lock wait timed out")}
