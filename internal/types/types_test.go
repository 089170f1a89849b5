package types_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/aanand-mishra/heroes-api/internal/types"
	. "github.com/smartystreets/goconvey/convey"
)

func intPtr(v int) *int { return &v }

func TestHeroUpdate_Unmarshal(t *testing.T) {
	Convey("Given a patch body", t, func() {
		Convey("When only age is sent", func() {
			var u types.HeroUpdate
			So(json.Unmarshal([]byte(`{"age":30}`), &u), ShouldBeNil)

			Convey("Then only age is marked as set", func() {
				So(u.Age, ShouldResemble, types.Some(30))
				So(u.Name.Set, ShouldBeFalse)
				So(u.SecretName.Set, ShouldBeFalse)
			})
		})

		Convey("When age is an explicit null", func() {
			var u types.HeroUpdate
			So(json.Unmarshal([]byte(`{"age":null}`), &u), ShouldBeNil)

			Convey("Then age is set but not valid", func() {
				So(u.Age, ShouldResemble, types.Null[int]())
			})
		})

		Convey("When a field has the wrong type", func() {
			var u types.HeroUpdate
			err := json.Unmarshal([]byte(`{"age":"thirty"}`), &u)

			Convey("Then decoding fails", func() {
				So(err, ShouldNotBeNil)
			})
		})

		Convey("When the body carries an id", func() {
			var u types.HeroUpdate
			So(json.Unmarshal([]byte(`{"id":9,"name":"Rusty-Man"}`), &u), ShouldBeNil)

			Convey("Then the id is ignored", func() {
				h := types.Hero{ID: 1, Name: "Deadpond", SecretName: "Dive Wilson"}
				u.Apply(&h)
				So(h.ID, ShouldEqual, 1)
				So(h.Name, ShouldEqual, "Rusty-Man")
			})
		})
	})
}

func TestHeroUpdate_Apply(t *testing.T) {
	Convey("Given a stored hero with an age", t, func() {
		h := types.Hero{ID: 1, Name: "Deadpond", SecretName: "Dive Wilson", Age: intPtr(48)}

		Convey("When applying an age-only patch", func() {
			types.HeroUpdate{Age: types.Some(30)}.Apply(&h)

			Convey("Then names are untouched", func() {
				So(h.Name, ShouldEqual, "Deadpond")
				So(h.SecretName, ShouldEqual, "Dive Wilson")
				So(*h.Age, ShouldEqual, 30)
			})
		})

		Convey("When applying an explicit null age", func() {
			types.HeroUpdate{Age: types.Null[int]()}.Apply(&h)

			Convey("Then the age is cleared", func() {
				So(h.Age, ShouldBeNil)
			})
		})

		Convey("When applying an empty patch", func() {
			before := h
			types.HeroUpdate{}.Apply(&h)

			Convey("Then nothing changes", func() {
				So(h, ShouldResemble, before)
			})
		})
	})
}

func TestHeroUpdate_Validate(t *testing.T) {
	Convey("Given patches to validate", t, func() {
		Convey("A null name is rejected", func() {
			err := types.HeroUpdate{Name: types.Null[string]()}.Validate()
			So(errors.Is(err, types.ErrInvalidUpdate), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "field name may not be null")
		})

		Convey("An empty secret name is rejected", func() {
			err := types.HeroUpdate{SecretName: types.Some("")}.Validate()
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "field secret_name is required")
		})

		Convey("A negative age is rejected", func() {
			err := types.HeroUpdate{Age: types.Some(-1)}.Validate()
			So(err, ShouldNotBeNil)
		})

		Convey("A null age is accepted", func() {
			So(types.HeroUpdate{Age: types.Null[int]()}.Validate(), ShouldBeNil)
		})
	})
}

func TestHero_JSON(t *testing.T) {
	Convey("Given a hero without an age", t, func() {
		h := types.Hero{ID: 1, Name: "Deadpond", SecretName: "Dive Wilson"}

		Convey("Then age encodes as null", func() {
			b, err := json.Marshal(h)
			So(err, ShouldBeNil)
			So(string(b), ShouldEqual, `{"id":1,"name":"Deadpond","secret_name":"Dive Wilson","age":null}`)
		})
	})

	Convey("Given a create payload without an id", t, func() {
		c := types.HeroCreate{Name: "Spider-Boy", SecretName: "Pedro Parqueador"}

		Convey("Then the record has a zero id", func() {
			So(c.Hero().ID, ShouldEqual, 0)
		})
	})
}
