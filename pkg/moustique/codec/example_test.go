package codec_test

import (
	"fmt"

	"github.com/tsarna/moustique/pkg/moustique/codec"
)

func ExampleEncode() {
	fmt.Println(codec.Encode("hello"))
	// Output: nTIfoT8=
}

func ExampleDecode() {
	s, err := codec.Decode("nTIfoT8=")
	if err != nil {
		panic(err)
	}
	fmt.Println(s)
	// Output: hello
}
