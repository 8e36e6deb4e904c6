// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package ingestion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/ueindex/pkg/storage"
)

const heroHeader = `#pragma once

#include "GameFramework/Actor.h"

UCLASS()
class GAME_API AHero : public ACharacter
{
	GENERATED_BODY()

public:
	AHero();

	UFUNCTION(BlueprintCallable)
	void Jump();

	UPROPERTY(EditAnywhere, Category="Stats")
	float Health;

	static int32 HeroCount;
};

enum class EHeroState
{
	Idle,
	Running = 2,
	Dead, // terminal
};

struct FHeroStats
{
	float Stamina;
};
`

func parseHero(t *testing.T) *ParseResult {
	t.Helper()
	p := newSimplifiedParser(nil)
	result, err := p.ParseHeader([]byte(heroHeader), "Hero.h")
	require.NoError(t, err)
	return result
}

func TestSimplifiedParserTypes(t *testing.T) {
	result := parseHero(t)
	require.Len(t, result.Types, 3)

	hero := result.Types[0]
	assert.Equal(t, "AHero", hero.Name)
	assert.Equal(t, storage.KindClass, hero.Kind)
	assert.Equal(t, "ACharacter", hero.Parent)

	assert.Equal(t, "EHeroState", result.Types[1].Name)
	assert.Equal(t, storage.KindEnum, result.Types[1].Kind)

	assert.Equal(t, "FHeroStats", result.Types[2].Name)
	assert.Equal(t, storage.KindStruct, result.Types[2].Kind)
}

func TestSimplifiedParserMembers(t *testing.T) {
	result := parseHero(t)
	byName := map[string]storage.MemberRecord{}
	for _, m := range result.Members {
		byName[m.Name] = m
	}

	jump, ok := byName["Jump"]
	require.True(t, ok)
	assert.Equal(t, storage.MemberFunction, jump.MemberKind)
	assert.Equal(t, "AHero", jump.TypeName)
	assert.Contains(t, jump.Specifiers, "UFUNCTION")
	assert.Contains(t, jump.Specifiers, "BlueprintCallable")

	health, ok := byName["Health"]
	require.True(t, ok)
	assert.Equal(t, storage.MemberProperty, health.MemberKind)
	assert.Contains(t, health.Specifiers, "UPROPERTY")

	count, ok := byName["HeroCount"]
	require.True(t, ok)
	assert.True(t, count.IsStatic)

	stamina, ok := byName["Stamina"]
	require.True(t, ok)
	assert.Equal(t, "FHeroStats", stamina.TypeName)

	// Constructor is not recorded as a member.
	_, ok = byName["AHero"]
	assert.False(t, ok)
}

func TestSimplifiedParserEnumValues(t *testing.T) {
	result := parseHero(t)
	var values []string
	for _, m := range result.Members {
		if m.MemberKind == storage.MemberEnumValue {
			values = append(values, m.Name)
			assert.Equal(t, "EHeroState", m.TypeName)
		}
	}
	assert.Equal(t, []string{"Idle", "Running", "Dead"}, values)
}

func TestSimplifiedParserInterfaceDetection(t *testing.T) {
	p := newSimplifiedParser(nil)
	result, err := p.ParseHeader([]byte("class IDamageable\n{\npublic:\n\tvirtual void TakeDamage(float Amount) = 0;\n};\n"), "Damageable.h")
	require.NoError(t, err)
	require.Len(t, result.Types, 1)
	assert.Equal(t, storage.KindInterface, result.Types[0].Kind)
}

func TestSimplifiedParserForwardDeclarationSkipped(t *testing.T) {
	p := newSimplifiedParser(nil)
	result, err := p.ParseHeader([]byte("class AActor;\n\nclass AReal\n{\n};\n"), "Fwd.h")
	require.NoError(t, err)
	require.Len(t, result.Types, 1)
	assert.Equal(t, "AReal", result.Types[0].Name)
}

func TestParserModeSelection(t *testing.T) {
	assert.IsType(t, &SimplifiedParser{}, NewHeaderParser(ParserModeSimplified, nil))
	assert.IsType(t, &TreeSitterParser{}, NewHeaderParser(ParserModeTreeSitter, nil))
	assert.IsType(t, &TreeSitterParser{}, NewHeaderParser(ParserModeAuto, nil))
}
