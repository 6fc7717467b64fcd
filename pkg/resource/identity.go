/*-
 * Copyright (c) 2024, F5 Networks, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package resource

import (
	"strings"

	"github.com/F5Networks/f5-bigip-reconciler/pkg/params"
)

// NewIdentity resolves the partition and accepts names given as
// /Partition/name.
func NewIdentity(name, partition string) Identity {
	if strings.HasPrefix(name, "/") {
		p, n := params.SplitFQName(name)
		return Identity{Name: n, Partition: p}
	}
	return Identity{Name: name, Partition: params.Partition(partition)}
}

// FullPath is /Partition/Name.
func (id Identity) FullPath() string {
	if id.Partition == "" {
		return id.Name
	}
	return "/" + id.Partition + "/" + id.Name
}

// URIName is the ~Partition~Name form used in resource URLs.
func (id Identity) URIName() string {
	return strings.Replace(id.FullPath(), "/", "~", -1)
}

func (id Identity) String() string {
	return id.FullPath()
}
