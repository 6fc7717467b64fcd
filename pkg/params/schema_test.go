/*-
 * Copyright (c) 2017-2024 F5 Networks, Inc.
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

package params

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Route Domain", func() {
	type testDataType struct {
		address string
		isValid bool
	}

	It("TestBigIpv4FormatChecker", func() {
		var schemaValidator BigIPv4FormatChecker

		testData := []testDataType{
			{address: "", isValid: false},
			{address: "1.2.3.4", isValid: true},
			{address: "http://bad", isValid: false},
			{address: "bad%0", isValid: false},
			{address: "1.2.3.4%bad", isValid: false},
			{address: "1.2.3.4%4", isValid: true},
			{address: "::", isValid: false},
			{address: "ff80::%12", isValid: false},
		}

		for _, td := range testData {
			Expect(schemaValidator.IsFormat(td.address)).To(Equal(td.isValid), td.address)
		}
		Expect(schemaValidator.IsFormat(42)).To(BeFalse())
	})

	It("TestBigIpv6FormatChecker", func() {
		var schemaValidator BigIPv6FormatChecker

		testData := []testDataType{
			{address: "", isValid: false},
			{address: "1.2.3.4", isValid: false},
			{address: "::", isValid: true},
			{address: "ff80::%12", isValid: true},
			{address: "ff80::%bad", isValid: false},
			{address: "2001:db8::1", isValid: true},
		}

		for _, td := range testData {
			Expect(schemaValidator.IsFormat(td.address)).To(Equal(td.isValid), td.address)
		}
	})

	It("TestBigIpAddressFormatChecker", func() {
		var schemaValidator BigIPAddressFormatChecker
		Expect(schemaValidator.IsFormat("10.0.0.1%0")).To(BeTrue())
		Expect(schemaValidator.IsFormat("fe80::1%3")).To(BeTrue())
		Expect(schemaValidator.IsFormat("10.0.0.0/24")).To(BeFalse())
	})

	It("should split address, route domain and CIDR", func() {
		_, _, _, err := SplitRouteDomain("10.1.1.0%5/24")
		Expect(err).To(HaveOccurred())

		ip, rd, cidr, err := SplitRouteDomain("10.1.1.0/24")
		Expect(err).NotTo(HaveOccurred())
		Expect(ip).To(Equal("10.1.1.0"))
		Expect(rd).To(BeEmpty())
		Expect(cidr).To(Equal("24"))

		ip, rd, cidr, err = SplitRouteDomain("10.1.1.1%5")
		Expect(err).NotTo(HaveOccurred())
		Expect(ip).To(Equal("10.1.1.1"))
		Expect(rd).To(Equal("5"))
		Expect(cidr).To(BeEmpty())
	})
})

var _ = Describe("Schema validation", func() {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"server": SchemaProperty("string", map[string]interface{}{"format": "bigipaddress"}),
			"port":   SchemaProperty("int", nil),
			"mode":   SchemaProperty("string", map[string]interface{}{"enum": []string{"a", "b"}}),
		},
		"required": []string{"server"},
	}

	It("should accept a valid document", func() {
		Expect(ValidateSchema(schema, map[string]interface{}{
			"server": "10.10.10.10%1",
			"port":   1812,
			"mode":   "a",
		})).To(Succeed())
	})

	It("should reject a bad address with the field name", func() {
		err := ValidateSchema(schema, map[string]interface{}{"server": "nope"})
		Expect(IsValidationError(err)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring("server"))
	})

	It("should name the missing required property", func() {
		err := ValidateSchema(schema, map[string]interface{}{"port": 1})
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("server"))
	})

	It("should report every violation", func() {
		err := ValidateSchema(schema, map[string]interface{}{"server": "nope", "mode": "c"})
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("mode"))
		Expect(err.Error()).To(ContainSubstring("server"))
	})
})
