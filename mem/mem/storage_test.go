package mem

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Storage", func() {
	var (
		storage *Storage
	)

	BeforeEach(func() {
		storage = NewStorageWithUnitSize(1*MB, 64)
	})

	It("should read zeros from untouched memory", func() {
		data, err := storage.Read(0x100, 8)

		Expect(err).NotTo(HaveOccurred())
		Expect(data).To(Equal(make([]byte, 8)))
		Expect(storage.NumAllocatedUnits()).To(Equal(0))
	})

	It("should read back what is written", func() {
		Expect(storage.Write(0x40, []byte{1, 2, 3, 4})).To(Succeed())

		data, err := storage.Read(0x40, 4)

		Expect(err).NotTo(HaveOccurred())
		Expect(data).To(Equal([]byte{1, 2, 3, 4}))
	})

	It("should write and read across units", func() {
		payload := make([]byte, 100)
		for i := range payload {
			payload[i] = byte(i)
		}

		Expect(storage.Write(60, payload)).To(Succeed())

		data, err := storage.Read(60, 100)

		Expect(err).NotTo(HaveOccurred())
		Expect(data).To(Equal(payload))
		Expect(storage.NumAllocatedUnits()).To(Equal(3))
	})

	It("should reject accesses beyond the capacity", func() {
		_, err := storage.Read(1*MB-2, 4)
		Expect(err).To(MatchError(ErrAddressOutOfRange))

		err = storage.Write(1*MB, []byte{1})
		Expect(err).To(MatchError(ErrAddressOutOfRange))
	})
})
