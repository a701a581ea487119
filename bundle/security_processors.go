// SPDX-FileCopyrightText: 2026 The bpagent Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bundle

// The security-related block types (bundle authentication, confidentiality,
// payload security, extension security) are extension points with no
// specification of the security ciphersuites themselves, only the
// block-processor extension points. Each is registered under its own
// type code as an opaque data carrier -- a real ciphersuite plug-in would
// replace Generate/Finalize with the actual cryptographic transform, but
// the streaming consume/validate/forwarding behaviour is identical across
// all four, so they share one implementation parameterised by BlockType.

type opaqueSecurityProcessor struct {
	blockType BlockType
}

func (p opaqueSecurityProcessor) Consume(_ *Bundle, block *BlockInfo, chunk []byte) (int, error) {
	return genericConsume(block, chunk)
}

func (p opaqueSecurityProcessor) Validate(_ *Bundle, _ []*BlockInfo, block *BlockInfo) (bool, StatusReportReason, ReceptionReason) {
	if block.Flags.Has(DiscardBlockOnError) {
		return false, ReasonNoInformation, ReasonNoInformation
	}
	return true, ReasonNoInformation, ReasonNoInformation
}

func (p opaqueSecurityProcessor) Prepare(_ *Bundle, outgoing *[]*BlockInfo, source *BlockInfo, _ LinkContext) error {
	bi := newBlockInfo(p.blockType, 0)
	if source != nil {
		bi.Buffer = append([]byte{}, source.Buffer...)
		bi.Flags = source.Flags
		bi.DataOffset = source.DataOffset
		bi.DataLen = source.DataLen
		bi.Complete = true
	}
	*outgoing = append(*outgoing, bi)
	return nil
}

func (p opaqueSecurityProcessor) Generate(_ *Bundle, _ []*BlockInfo, block *BlockInfo, _ LinkContext, isLast bool) error {
	flags := block.Flags
	if isLast {
		flags |= LastBlock
	} else {
		flags &^= LastBlock
	}

	data := block.Data()
	buf := writePreamble(nil, p.blockType, flags, len(data))
	block.Flags = flags
	block.DataOffset = len(buf)
	block.DataLen = len(data)
	block.Buffer = append(buf, data...)
	block.Complete = true
	return nil
}

func (p opaqueSecurityProcessor) Finalize(*Bundle, []*BlockInfo, *BlockInfo, LinkContext) error {
	return nil
}

type bundleAuthBlockProcessor struct{ opaqueSecurityProcessor }
type confidentialityBlockProcessor struct{ opaqueSecurityProcessor }
type payloadSecurityBlockProcessor struct{ opaqueSecurityProcessor }
type extensionSecurityBlockProcessor struct{ opaqueSecurityProcessor }

func init() {
	RegisterBlockProcessor(BlockTypeBundleAuthentication, bundleAuthBlockProcessor{opaqueSecurityProcessor{BlockTypeBundleAuthentication}})
	RegisterBlockProcessor(BlockTypeConfidentiality, confidentialityBlockProcessor{opaqueSecurityProcessor{BlockTypeConfidentiality}})
	RegisterBlockProcessor(BlockTypePayloadSecurity, payloadSecurityBlockProcessor{opaqueSecurityProcessor{BlockTypePayloadSecurity}})
	RegisterBlockProcessor(BlockTypeExtensionSecurity, extensionSecurityBlockProcessor{opaqueSecurityProcessor{BlockTypeExtensionSecurity}})
}
